package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/feed"
	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/service"
)

const updateBuffer = 8

var (
	ErrNotReady      = errors.New("session not ready")
	ErrAlreadyOpened = errors.New("session already opened")

	errSuperseded = errors.New("session changed while subscribing")
)

type State string

const (
	StateUnresolved  State = "unresolved"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateUnavailable State = "unavailable"
	StateTerminated  State = "terminated"
)

// Resource names the part of the view an Update refreshed.
type Resource string

const (
	ResourceState    Resource = "state"
	ResourceProjects Resource = "projects"
	ResourceClients  Resource = "clients"
	ResourceStats    Resource = "stats"
	ResourceProject  Resource = "project"
	ResourceMessages Resource = "messages"
	ResourceFiles    Resource = "files"
	ResourceInvoices Resource = "invoices"

	resourceAccess Resource = "access"
)

// reload order within one wake-up; access first so a revoked session loads nothing.
var reloadOrder = []Resource{
	resourceAccess,
	ResourceProjects,
	ResourceClients,
	ResourceStats,
	ResourceMessages,
	ResourceFiles,
	ResourceInvoices,
}

type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*model.PortalToken, error)
	StillActive(ctx context.Context, id string) (bool, error)
}

type Authenticator interface {
	CurrentUser(ctx context.Context, token string) (*model.User, *model.AuthSession, error)
}

// Reader is the scoped read side of the query gateway.
type Reader interface {
	ListProjects(ctx context.Context, scope model.Scope) ([]model.Project, error)
	GetProject(ctx context.Context, scope model.Scope, id string) (*model.Project, error)
	ListClients(ctx context.Context, scope model.Scope) ([]model.Client, error)
	ListMessages(ctx context.Context, scope model.Scope, projectID string) ([]model.Message, error)
	ListFiles(ctx context.Context, scope model.Scope, projectID string) ([]model.FileRecord, error)
	ListInvoices(ctx context.Context, scope model.Scope, projectID string) ([]model.Invoice, error)
	InvoiceSummary(ctx context.Context, scope model.Scope, projectID *string) (*model.InvoiceSummary, error)
	DashboardStats(ctx context.Context, scope model.Scope) (*model.DashboardStats, error)
	GetProfile(ctx context.Context, scope model.Scope) (*model.Profile, error)
	PortalBranding(ctx context.Context, scope model.Scope) (*service.PortalOverview, error)
}

type Feeds interface {
	Subscribe(table, filter string, onEvent feed.Handler) (*feed.Subscription, error)
}

type Deps struct {
	Tokens TokenResolver
	Auth   Authenticator
	Reader Reader
	Feeds  Feeds
}

type ViewError struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
}

// Snapshot is the whole view of one session. Lists are replaced on reload,
// never modified in place, so a Snapshot can be shared after it is taken.
type Snapshot struct {
	Generation      uint64                  `json:"generation"`
	State           State                   `json:"state"`
	Error           *ViewError              `json:"error,omitempty"`
	Portal          *service.PortalOverview `json:"portal,omitempty"`
	Profile         *model.Profile          `json:"profile,omitempty"`
	Stats           *model.DashboardStats   `json:"stats,omitempty"`
	Clients         []model.Client          `json:"clients,omitempty"`
	Projects        []model.Project         `json:"projects"`
	ActiveProjectID string                  `json:"activeProjectId,omitempty"`
	Messages        []model.Message         `json:"messages"`
	Files           []model.FileRecord      `json:"files"`
	Invoices        []model.Invoice         `json:"invoices"`
	Summary         *model.InvoiceSummary   `json:"summary,omitempty"`
}

type Update struct {
	Resource Resource
	Snapshot Snapshot
}

// Controller serves one portal or dashboard session: it resolves the caller
// to a scope, loads the view, and reloads the affected list whenever a
// subscribed feed reports a change. Reloads run on a single goroutine.
type Controller struct {
	deps Deps

	mu            sync.Mutex
	kind          model.ScopeKind
	state         State
	scope         model.Scope
	token         string
	tokenID       string
	activeProject string
	generation    uint64
	view          Snapshot
	scopeSubs     []*feed.Subscription
	projectSubs   []*feed.Subscription
	pending       map[Resource]bool

	wake    chan struct{}
	updates chan Update
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(deps Deps) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		deps:    deps,
		state:   StateUnresolved,
		pending: make(map[Resource]bool),
		wake:    make(chan struct{}, 1),
		updates: make(chan Update, updateBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Updates delivers a fresh Snapshot after every state change or reload.
// When the reader falls behind, older updates are dropped in favor of newer ones.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Done is closed once the session is Unavailable or Terminated.
func (c *Controller) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Scope() model.Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// OpenPortal resolves an opaque portal token and loads the client's view.
// An unknown, expired or revoked token leaves the session Unavailable without
// issuing any query.
func (c *Controller) OpenPortal(ctx context.Context, token string) error {
	if err := c.begin(model.ScopePortal); err != nil {
		return err
	}

	pt, err := c.deps.Tokens.Resolve(ctx, token)
	if err != nil {
		c.end(StateUnavailable, err)
		return err
	}
	scope := pt.Scope()

	c.mu.Lock()
	c.scope = scope
	c.tokenID = pt.ID
	c.mu.Unlock()

	if err := c.watch("portal_tokens", feed.Eq("id", pt.ID), 0, resourceAccess); err != nil {
		return c.fail(err)
	}
	if err := c.watch("projects", feed.Eq("client_id", scope.ClientID), 0, ResourceProjects); err != nil {
		return c.fail(err)
	}

	overview, err := c.deps.Reader.PortalBranding(ctx, scope)
	if err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	c.view.Portal = overview
	c.mu.Unlock()

	log.Info().
		Str("ownerUserId", scope.OwnerUserID).
		Str("clientId", scope.ClientID).
		Msg("portal session opened")

	return c.ready(ctx, scope)
}

// OpenDashboard authenticates a dashboard session token and loads the owner's view.
func (c *Controller) OpenDashboard(ctx context.Context, token string) error {
	if err := c.begin(model.ScopeOwner); err != nil {
		return err
	}

	user, _, err := c.deps.Auth.CurrentUser(ctx, token)
	if err != nil {
		c.end(StateUnavailable, err)
		return err
	}
	if user == nil {
		err := apperrors.Unauthorized("Not signed in")
		c.end(StateUnavailable, err)
		return err
	}
	scope := model.OwnerScope(user.ID)

	c.mu.Lock()
	c.scope = scope
	c.token = token
	c.mu.Unlock()

	owner := feed.Eq("user_id", user.ID)
	watches := []struct {
		table     string
		resources []Resource
	}{
		{"auth_sessions", []Resource{resourceAccess}},
		{"projects", []Resource{ResourceProjects, ResourceStats}},
		{"clients", []Resource{ResourceClients, ResourceStats}},
		{"invoices", []Resource{ResourceStats}},
	}
	for _, w := range watches {
		if err := c.watch(w.table, owner, 0, w.resources...); err != nil {
			return c.fail(err)
		}
	}

	profile, err := c.deps.Reader.GetProfile(ctx, scope)
	if err != nil {
		return c.fail(err)
	}
	clients, err := c.deps.Reader.ListClients(ctx, scope)
	if err != nil {
		return c.fail(err)
	}
	stats, err := c.deps.Reader.DashboardStats(ctx, scope)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.view.Profile = profile
	c.view.Clients = clients
	c.view.Stats = stats
	c.mu.Unlock()

	log.Info().Str("ownerUserId", user.ID).Msg("dashboard session opened")

	return c.ready(ctx, scope)
}

// SelectProject makes projectID the active project: the previous project's
// feeds are released before the new ones open.
func (c *Controller) SelectProject(ctx context.Context, projectID string) error {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	scope := c.scope
	if projectID == c.activeProject {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if _, err := c.deps.Reader.GetProject(ctx, scope, projectID); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	c.generation++
	gen := c.generation
	previous := c.projectSubs
	c.projectSubs = nil
	c.activeProject = projectID
	c.view.ActiveProjectID = projectID
	c.view.Messages, c.view.Files, c.view.Invoices, c.view.Summary = nil, nil, nil, nil
	c.mu.Unlock()

	for _, s := range previous {
		s.Unsubscribe()
	}

	if err := c.watchProject(scope, projectID, gen); err != nil {
		if errors.Is(err, errSuperseded) {
			return nil
		}
		return err
	}

	data, err := c.loadProject(ctx, scope, projectID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || c.generation != gen {
		return nil
	}
	if err != nil {
		c.view.Error = viewError(err)
	} else {
		c.view.Error = nil
		data.applyTo(&c.view)
	}
	c.publishLocked(ResourceProject)

	log.Debug().
		Str("ownerUserId", scope.OwnerUserID).
		Str("projectId", projectID).
		Uint64("generation", gen).
		Msg("active project switched")

	return err
}

// Close terminates the session and releases every feed. Safe to call more than once.
func (c *Controller) Close() {
	c.end(StateTerminated, nil)
}

func (c *Controller) begin(kind model.ScopeKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUnresolved {
		return ErrAlreadyOpened
	}
	c.kind = kind
	c.state = StateLoading
	c.generation = 1
	return nil
}

func (c *Controller) ready(ctx context.Context, scope model.Scope) error {
	projects, err := c.deps.Reader.ListProjects(ctx, scope)
	if err != nil {
		return c.fail(err)
	}

	var (
		active string
		data   projectData
	)
	if len(projects) > 0 {
		active = projects[0].ID
		if err := c.watchProject(scope, active, 1); err != nil {
			return c.fail(err)
		}
		if data, err = c.loadProject(ctx, scope, active); err != nil {
			return c.fail(err)
		}
	}

	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return ErrNotReady
	}
	c.state = StateReady
	c.activeProject = active
	c.view.Projects = projects
	c.view.ActiveProjectID = active
	data.applyTo(&c.view)
	c.publishLocked(ResourceState)
	c.mu.Unlock()

	go c.run()
	return nil
}

// fail moves a loading session to Unavailable.
func (c *Controller) fail(err error) error {
	if errors.Is(err, errSuperseded) {
		return ErrNotReady
	}
	c.end(StateUnavailable, err)
	return err
}

func (c *Controller) end(state State, err error) {
	c.mu.Lock()
	if c.state == StateTerminated || (c.state == state && state == StateUnavailable) {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.generation++
	if err != nil {
		c.view.Error = viewError(err)
	}
	c.publishLocked(ResourceState)
	subs := append(c.scopeSubs, c.projectSubs...)
	c.scopeSubs, c.projectSubs = nil, nil
	scope := c.scope
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	c.cancel()

	event := log.Info()
	if err != nil {
		event = log.Warn().Err(err)
	}
	event.
		Str("ownerUserId", scope.OwnerUserID).
		Str("clientId", scope.ClientID).
		Str("state", string(state)).
		Int("releasedFeeds", len(subs)).
		Msg("session ended")
}

// watch subscribes table/filter and queues resources on every change.
// A gen of 0 marks a session-wide feed; otherwise the feed belongs to the
// active project of that generation.
func (c *Controller) watch(table, filter string, gen uint64, resources ...Resource) error {
	sub, err := c.deps.Feeds.Subscribe(table, filter, func(feed.Change) {
		c.request(gen, resources...)
	})
	if err != nil {
		return apperrors.Unavailable("Change feed unavailable").WithCause(err)
	}

	c.mu.Lock()
	live := c.state == StateLoading || c.state == StateReady
	if !live || (gen != 0 && gen != c.generation) {
		c.mu.Unlock()
		sub.Unsubscribe()
		return errSuperseded
	}
	if gen == 0 {
		c.scopeSubs = append(c.scopeSubs, sub)
	} else {
		c.projectSubs = append(c.projectSubs, sub)
	}
	c.mu.Unlock()
	return nil
}

// clientVisibleProjectKey is published by the messages trigger only for
// messages that are not internal notes.
const clientVisibleProjectKey = "client_visible_project_id"

func (c *Controller) watchProject(scope model.Scope, projectID string, gen uint64) error {
	project := feed.Eq("project_id", projectID)
	messages := project
	if scope.IsPortal() {
		messages = feed.Eq(clientVisibleProjectKey, projectID)
	}
	if err := c.watch("messages", messages, gen, ResourceMessages); err != nil {
		return err
	}
	if err := c.watch("files", project, gen, ResourceFiles); err != nil {
		return err
	}
	return c.watch("invoices", project, gen, ResourceInvoices)
}

func (c *Controller) request(gen uint64, resources ...Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoading && c.state != StateReady {
		return
	}
	if gen != 0 && gen != c.generation {
		return
	}
	for _, r := range resources {
		c.pending[r] = true
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		c.mu.Lock()
		pending := c.pending
		c.pending = make(map[Resource]bool)
		gen, scope, project := c.generation, c.scope, c.activeProject
		c.mu.Unlock()

		for _, r := range reloadOrder {
			if !pending[r] {
				continue
			}
			if r == resourceAccess {
				if !c.checkAccess() {
					return
				}
				continue
			}
			c.reload(r, gen, scope, project)
		}
	}
}

// checkAccess re-validates the credential behind the session after its
// token or login row changed. It reports false once the session has ended.
func (c *Controller) checkAccess() bool {
	c.mu.Lock()
	kind, token, tokenID := c.kind, c.token, c.tokenID
	c.mu.Unlock()

	if kind == model.ScopePortal {
		active, err := c.deps.Tokens.StillActive(c.ctx, tokenID)
		if err != nil {
			log.Warn().Err(err).Str("tokenId", tokenID).Msg("failed to recheck portal token")
			return true
		}
		if !active {
			c.end(StateUnavailable, apperrors.InvalidToken())
			return false
		}
		return true
	}

	user, _, err := c.deps.Auth.CurrentUser(c.ctx, token)
	if err != nil {
		log.Warn().Err(err).Msg("failed to recheck dashboard session")
		return true
	}
	if user == nil {
		c.end(StateTerminated, apperrors.SessionExpired())
		return false
	}
	return true
}

func (c *Controller) reload(r Resource, gen uint64, scope model.Scope, project string) {
	ctx := c.ctx
	switch r {
	case ResourceProjects:
		projects, err := c.deps.Reader.ListProjects(ctx, scope)
		c.apply(r, 0, err, func(s *Snapshot) { s.Projects = projects })
	case ResourceClients:
		clients, err := c.deps.Reader.ListClients(ctx, scope)
		c.apply(r, 0, err, func(s *Snapshot) { s.Clients = clients })
	case ResourceStats:
		stats, err := c.deps.Reader.DashboardStats(ctx, scope)
		c.apply(r, 0, err, func(s *Snapshot) { s.Stats = stats })
	case ResourceMessages:
		if project == "" {
			return
		}
		messages, err := c.deps.Reader.ListMessages(ctx, scope, project)
		c.apply(r, gen, err, func(s *Snapshot) { s.Messages = messages })
	case ResourceFiles:
		if project == "" {
			return
		}
		files, err := c.deps.Reader.ListFiles(ctx, scope, project)
		c.apply(r, gen, err, func(s *Snapshot) { s.Files = files })
	case ResourceInvoices:
		if project == "" {
			return
		}
		invoices, err := c.deps.Reader.ListInvoices(ctx, scope, project)
		var summary *model.InvoiceSummary
		if err == nil {
			summary, err = c.deps.Reader.InvoiceSummary(ctx, scope, &project)
		}
		c.apply(r, gen, err, func(s *Snapshot) {
			s.Invoices = invoices
			s.Summary = summary
		})
	}
}

// apply installs a reload result unless the session moved on while it ran.
func (c *Controller) apply(r Resource, gen uint64, err error, set func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		return
	}
	if gen != 0 && gen != c.generation {
		log.Debug().
			Str("resource", string(r)).
			Uint64("generation", gen).
			Uint64("current", c.generation).
			Msg("discarding stale reload")
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Warn().Err(err).Str("resource", string(r)).Msg("reload failed")
		c.view.Error = viewError(err)
	} else {
		c.view.Error = nil
		set(&c.view)
	}
	c.publishLocked(r)
}

func (c *Controller) snapshotLocked() Snapshot {
	s := c.view
	s.Generation = c.generation
	s.State = c.state
	return s
}

func (c *Controller) publishLocked(r Resource) {
	u := Update{Resource: r, Snapshot: c.snapshotLocked()}
	select {
	case c.updates <- u:
		return
	default:
	}
	// Full: the newest snapshot supersedes the oldest queued one.
	select {
	case <-c.updates:
	default:
	}
	c.updates <- u
}

type projectData struct {
	messages []model.Message
	files    []model.FileRecord
	invoices []model.Invoice
	summary  *model.InvoiceSummary
}

func (d projectData) applyTo(s *Snapshot) {
	s.Messages = d.messages
	s.Files = d.files
	s.Invoices = d.invoices
	s.Summary = d.summary
}

func (c *Controller) loadProject(ctx context.Context, scope model.Scope, projectID string) (projectData, error) {
	var (
		d   projectData
		err error
	)
	if d.messages, err = c.deps.Reader.ListMessages(ctx, scope, projectID); err != nil {
		return d, err
	}
	if d.files, err = c.deps.Reader.ListFiles(ctx, scope, projectID); err != nil {
		return d, err
	}
	if d.invoices, err = c.deps.Reader.ListInvoices(ctx, scope, projectID); err != nil {
		return d, err
	}
	d.summary, err = c.deps.Reader.InvoiceSummary(ctx, scope, &projectID)
	return d, err
}

func viewError(err error) *ViewError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return &ViewError{Code: appErr.Code, Message: appErr.Message}
	}
	return &ViewError{Code: apperrors.ErrCodeInternal, Message: "Something went wrong"}
}
