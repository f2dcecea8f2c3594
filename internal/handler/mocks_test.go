package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/handoff/handoff-server/internal/middleware"
	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/service"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ListProjects(ctx context.Context, scope model.Scope) ([]model.Project, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Project), args.Error(1)
}

func (m *mockGateway) GetProject(ctx context.Context, scope model.Scope, id string) (*model.Project, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *mockGateway) CreateProject(ctx context.Context, scope model.Scope, in service.CreateProjectInput) (*model.Project, error) {
	args := m.Called(ctx, scope, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *mockGateway) UpdateProjectStatus(ctx context.Context, scope model.Scope, id string, status model.ProjectStatus) (*model.Project, error) {
	args := m.Called(ctx, scope, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *mockGateway) ListClients(ctx context.Context, scope model.Scope) ([]model.Client, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Client), args.Error(1)
}

func (m *mockGateway) GetClient(ctx context.Context, scope model.Scope, id string) (*model.Client, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockGateway) CreateClient(ctx context.Context, scope model.Scope, in service.CreateClientInput) (*model.Client, error) {
	args := m.Called(ctx, scope, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Client), args.Error(1)
}

func (m *mockGateway) ListMessages(ctx context.Context, scope model.Scope, projectID string) ([]model.Message, error) {
	args := m.Called(ctx, scope, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockGateway) PostMessage(ctx context.Context, scope model.Scope, projectID, content string, internal bool) (*model.Message, error) {
	args := m.Called(ctx, scope, projectID, content, internal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockGateway) ListRecentMessages(ctx context.Context, scope model.Scope, limit, offset int) ([]model.RecentMessage, int, error) {
	args := m.Called(ctx, scope, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.RecentMessage), args.Int(1), args.Error(2)
}

func (m *mockGateway) ListFiles(ctx context.Context, scope model.Scope, projectID string) ([]model.FileRecord, error) {
	args := m.Called(ctx, scope, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FileRecord), args.Error(1)
}

// UploadFile reads the body so expectations can match on its content.
func (m *mockGateway) UploadFile(ctx context.Context, scope model.Scope, projectID, name, mimeType string, body io.Reader) (*model.FileRecord, error) {
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	args := m.Called(ctx, scope, projectID, name, mimeType, string(content))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileRecord), args.Error(1)
}

func (m *mockGateway) FileDownloadURL(ctx context.Context, scope model.Scope, fileID string) (*model.SignedURL, error) {
	args := m.Called(ctx, scope, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SignedURL), args.Error(1)
}

func (m *mockGateway) ListInvoices(ctx context.Context, scope model.Scope, projectID string) ([]model.Invoice, error) {
	args := m.Called(ctx, scope, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Invoice), args.Error(1)
}

func (m *mockGateway) ListAllInvoices(ctx context.Context, scope model.Scope) ([]model.InvoiceListItem, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.InvoiceListItem), args.Error(1)
}

func (m *mockGateway) CreateInvoice(ctx context.Context, scope model.Scope, in service.CreateInvoiceInput) (*model.Invoice, error) {
	args := m.Called(ctx, scope, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *mockGateway) InvoiceSummary(ctx context.Context, scope model.Scope, projectID *string) (*model.InvoiceSummary, error) {
	args := m.Called(ctx, scope, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.InvoiceSummary), args.Error(1)
}

func (m *mockGateway) DashboardStats(ctx context.Context, scope model.Scope) (*model.DashboardStats, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DashboardStats), args.Error(1)
}

func (m *mockGateway) GetProfile(ctx context.Context, scope model.Scope) (*model.Profile, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockGateway) UpdateProfile(ctx context.Context, scope model.Scope, in service.UpdateProfileInput) (*model.Profile, error) {
	args := m.Called(ctx, scope, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockGateway) PortalBranding(ctx context.Context, scope model.Scope) (*service.PortalOverview, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PortalOverview), args.Error(1)
}

type mockPortalTokens struct {
	mock.Mock
}

func (m *mockPortalTokens) Issue(ctx context.Context, scope model.Scope, clientID string, expiresAt *time.Time) (*model.PortalToken, string, error) {
	args := m.Called(ctx, scope, clientID, expiresAt)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.PortalToken), args.String(1), args.Error(2)
}

func (m *mockPortalTokens) Find(ctx context.Context, scope model.Scope, clientID string) (*model.PortalToken, error) {
	args := m.Called(ctx, scope, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PortalToken), args.Error(1)
}

func (m *mockPortalTokens) Revoke(ctx context.Context, scope model.Scope, clientID string) error {
	args := m.Called(ctx, scope, clientID)
	return args.Error(0)
}

type mockAuthProvider struct {
	mock.Mock
}

func (m *mockAuthProvider) SignUp(ctx context.Context, email, password, fullName string) (*model.User, error) {
	args := m.Called(ctx, email, password, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockAuthProvider) SignIn(ctx context.Context, email, password string) (string, *model.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return "", nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*model.User), args.Error(2)
}

func (m *mockAuthProvider) CurrentUser(ctx context.Context, token string) (*model.User, *model.AuthSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.User), args.Get(1).(*model.AuthSession), args.Error(2)
}

func (m *mockAuthProvider) SignOut(ctx context.Context, token string) (*model.AuthSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthSession), args.Error(1)
}

// withScope stands in for the auth middleware.
func withScope(scope model.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithScope(r.Context(), scope)))
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }
