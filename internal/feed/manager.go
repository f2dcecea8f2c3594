package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	subscriberBuffer    = 64
	busSubscribeTimeout = 10 * time.Second
	resyncRetryMin      = time.Second
	resyncRetryMax      = 30 * time.Second

	// resyncKey carries "reload everything" broadcasts between instances.
	resyncKey = "_resync"
)

var ErrClosed = errors.New("feed manager closed")

// Handler is invoked once per change, in commit order, on the subscription's
// own goroutine. Handlers should be cheap triggers such as "reload this list".
type Handler func(Change)

// Manager multiplexes subscriptions onto one bus subscription per feed key
// and releases the bus subscription when its last subscriber leaves.
type Manager struct {
	bus     Bus
	metrics *Metrics

	mu     sync.Mutex
	feeds  map[string]*upstream
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

type upstream struct {
	key         string
	sub         BusSubscription
	subscribers map[*Subscription]struct{}
}

func NewManager(bus Bus, metrics *Metrics) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		bus:     bus,
		metrics: metrics,
		feeds:   make(map[string]*upstream),
		ctx:     ctx,
		cancel:  cancel,
	}
	go m.watchResync()
	return m
}

// Subscribe registers onEvent for every change to table matching filter
// ("" for the whole table, otherwise "column=eq.value").
func (m *Manager) Subscribe(table, filter string, onEvent Handler) (*Subscription, error) {
	if !validTable(table) {
		return nil, fmt.Errorf("invalid table %q", table)
	}
	if onEvent == nil {
		return nil, errors.New("nil handler")
	}
	f, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		manager: m,
		table:   table,
		filter:  f,
		key:     FeedKey(table, f),
		handler: onEvent,
		events:  make(chan Change, subscriberBuffer),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	up := m.feeds[s.key]
	if up != nil {
		m.attach(up, s)
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	// m.mu is not held across the bus round trip.
	ctx, cancel := context.WithTimeout(m.ctx, busSubscribeTimeout)
	busSub, err := m.bus.Subscribe(ctx, s.key)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", s.key, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		closeUpstream(s.key, busSub)
		return nil, ErrClosed
	}
	var extra BusSubscription
	if up = m.feeds[s.key]; up != nil {
		extra = busSub
	} else {
		up = &upstream{key: s.key, sub: busSub, subscribers: make(map[*Subscription]struct{})}
		m.feeds[s.key] = up
		m.metrics.upstreamOpened()
		go m.pump(up)
		log.Debug().Str("key", s.key).Msg("feed upstream opened")
	}
	m.attach(up, s)
	m.mu.Unlock()

	// Another caller opened the same feed first.
	if extra != nil {
		closeUpstream(s.key, extra)
	}
	return s, nil
}

// attach must be called with m.mu held.
func (m *Manager) attach(up *upstream, s *Subscription) {
	up.subscribers[s] = struct{}{}
	m.metrics.subscriberAdded()

	go s.deliver()

	log.Debug().
		Str("table", s.table).
		Str("filter", s.filter.String()).
		Int("subscriberCount", len(up.subscribers)).
		Msg("feed subscribed")
}

func closeUpstream(key string, sub BusSubscription) {
	if err := sub.Close(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to close feed upstream")
	}
}

// Publish announces a change on the table feed and on every filtered feed it matches.
func (m *Manager) Publish(ctx context.Context, change Change) error {
	if !validTable(change.Table) {
		return fmt.Errorf("invalid table %q", change.Table)
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range feedKeys(change) {
		if err := m.bus.Publish(ctx, key, payload); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) pump(up *upstream) {
	for payload := range up.sub.Messages() {
		if payload == nil {
			log.Warn().Str("key", up.key).Msg("feed upstream reconnected, resyncing subscribers")
			for _, s := range m.subscribersOf(up) {
				s.requestResync()
			}
			continue
		}

		var change Change
		if err := json.Unmarshal(payload, &change); err != nil {
			log.Error().Err(err).Str("key", up.key).Msg("failed to unmarshal change")
			continue
		}

		for _, s := range m.subscribersOf(up) {
			s.enqueue(change)
		}
	}
}

func (m *Manager) subscribersOf(up *upstream) []*Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := make([]*Subscription, 0, len(up.subscribers))
	for s := range up.subscribers {
		subs = append(subs, s)
	}
	return subs
}

func (m *Manager) remove(s *Subscription) {
	m.mu.Lock()
	up := m.feeds[s.key]
	if up == nil {
		m.mu.Unlock()
		return
	}
	if _, ok := up.subscribers[s]; !ok {
		m.mu.Unlock()
		return
	}
	delete(up.subscribers, s)
	m.metrics.subscriberRemoved()

	released := len(up.subscribers) == 0
	if released {
		delete(m.feeds, s.key)
		m.metrics.upstreamClosed()
	}
	m.mu.Unlock()

	if released {
		closeUpstream(s.key, up.sub)
		log.Debug().Str("key", s.key).Msg("feed upstream released")
	}
}

// ResyncAll asks every live subscription in this process to reload.
func (m *Manager) ResyncAll() {
	m.mu.Lock()
	var subs []*Subscription
	for _, up := range m.feeds {
		for s := range up.subscribers {
			subs = append(subs, s)
		}
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.requestResync()
	}
	log.Info().Int("subscriberCount", len(subs)).Msg("feed resync requested")
}

// Resync broadcasts a reload to every instance sharing the bus, this one included.
// Use it when changes may have been lost upstream of the bus.
func (m *Manager) Resync(ctx context.Context) error {
	payload, err := json.Marshal(Change{Type: ChangeResync, CommittedAt: time.Now()})
	if err != nil {
		return err
	}
	return m.bus.Publish(ctx, resyncKey, payload)
}

// watchResync keeps a bus subscription to resync broadcasts open for the
// manager's lifetime.
func (m *Manager) watchResync() {
	backoff := resyncRetryMin
	for {
		sub, err := m.bus.Subscribe(m.ctx, resyncKey)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Dur("retryIn", backoff).Msg("failed to subscribe to feed resyncs")
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, resyncRetryMax)
			continue
		}
		backoff = resyncRetryMin

		m.consumeResyncs(sub)
		if m.ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) consumeResyncs(sub BusSubscription) {
	defer closeUpstream(resyncKey, sub)
	for {
		select {
		case <-m.ctx.Done():
			return
		case _, ok := <-sub.Messages():
			if !ok {
				return
			}
			// A reconnect (nil payload) may have swallowed a broadcast too.
			m.ResyncAll()
		}
	}
}

// Close ends every subscription. Later Subscribe calls fail with ErrClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	var subs []*Subscription
	for _, up := range m.feeds {
		for s := range up.subscribers {
			subs = append(subs, s)
		}
	}
	m.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	m.cancel()
}

// UpstreamCount reports open bus subscriptions.
func (m *Manager) UpstreamCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.feeds)
}

// SubscriberCount reports subscriptions on the feed for table and filter.
func (m *Manager) SubscriberCount(table, filter string) int {
	f, err := ParseFilter(filter)
	if err != nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if up := m.feeds[FeedKey(table, f)]; up != nil {
		return len(up.subscribers)
	}
	return 0
}

// Subscription is one registered handler. Unsubscribe is safe to call more than once.
type Subscription struct {
	manager *Manager
	table   string
	filter  *Filter
	key     string
	handler Handler

	events chan Change
	resync atomic.Bool
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Table() string { return s.table }

func (s *Subscription) Filter() string { return s.filter.String() }

// Done is closed once the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Unsubscribe stops delivery and releases the upstream feed when unused.
// Changes not yet handed to the handler are discarded.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		s.manager.remove(s)
	})
}

func (s *Subscription) enqueue(c Change) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.events <- c:
	default:
		// Buffer full: fold everything pending into a single resync.
		if !s.resync.Swap(true) {
			log.Warn().Str("key", s.key).Msg("subscriber buffer full, coalescing into resync")
		}
		s.manager.metrics.eventCoalesced()
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// requestResync drops whatever is pending and schedules one RESYNC delivery.
func (s *Subscription) requestResync() {
	select {
	case <-s.done:
		return
	default:
	}
	s.resync.Store(true)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) deliver() {
	for {
		select {
		case <-s.done:
			return
		case c := <-s.events:
			if !s.resync.Load() {
				s.call(c)
			}
		case <-s.wake:
		}

		if s.resync.CompareAndSwap(true, false) {
			s.drain()
			s.call(Change{Table: s.table, Type: ChangeResync})
		}
	}
}

func (s *Subscription) drain() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

func (s *Subscription) call(c Change) {
	select {
	case <-s.done:
		return
	default:
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("key", s.key).Msg("feed handler panicked")
		}
	}()

	s.handler(c)
	s.manager.metrics.eventDelivered(s.table)
}
