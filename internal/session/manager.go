// Package session maintains the single source of truth for "who is logged
// in and with what role", reconciling the identity backend's event model
// into state the rest of the application can consume. A Manager is built
// and owned by the composition root; there is no package-level instance.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soggo/bounty/internal/kvstore"
	"github.com/soggo/bounty/internal/route"
)

const DefaultRole = "customer"

type Event int

const (
	EventInitialSession Event = iota
	EventSignedIn
	EventSignedOut
	EventTokenRefreshed
	EventUserUpdated
)

type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type Session struct {
	User      *User
	ExpiresAt time.Time
}

// Backend is the capability set the manager needs from the identity
// provider. GetUser re-fetches the authoritative user; GetSession returns
// the locally cached view without a round trip.
type Backend interface {
	GetSession(ctx context.Context) (*Session, error)
	GetUser(ctx context.Context) (*User, error)
	RoleForUser(ctx context.Context, id uuid.UUID) (string, error)
	SignOut(ctx context.Context) error
	Subscribe(fn func(Event, *Session)) (unsubscribe func())
}

// Locator abstracts the address bar: current hash fragment plus redirects.
type Locator interface {
	Current() string
	Navigate(fragment string)
}

type State struct {
	User          *User
	Role          string
	Authenticated bool
	Loading       bool
	Err           *AuthError
}

type Config struct {
	MaxFailures int           // refresh failures before the circuit opens
	Cooldown    time.Duration // how long the circuit stays open
	Debounce    time.Duration // notification coalescing delay
	Now         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Debounce <= 0 {
		c.Debounce = 50 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type Manager struct {
	backend Backend
	store   kvstore.Store
	loc     Locator
	log     *slog.Logger

	mu          sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextSubID   int
	debounce    *time.Timer
	debounceDur time.Duration
	unsubscribe func()

	initOnce sync.Once
	initErr  error

	breaker *breaker

	// OnAuthLost runs whenever the signed-in state is torn down (sign-out,
	// backend sign-out event, recovery). The cart hooks in here to empty
	// itself.
	OnAuthLost func()
}

func NewManager(backend Backend, store kvstore.Store, loc Locator, log *slog.Logger, cfg Config) *Manager {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		backend:     backend,
		store:       store,
		loc:         loc,
		log:         log,
		state:       State{Loading: true, Role: ""},
		subscribers: make(map[int]func(State)),
		debounceDur: cfg.Debounce,
		breaker:     newBreaker(cfg.MaxFailures, cfg.Cooldown, cfg.Now),
	}
}

// Initialize is idempotent: the first caller performs the initial session
// fetch and subscribes to backend events; concurrent and later callers
// observe the outcome of that first attempt.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initOnce.Do(func() {
		m.initErr = m.doInitialize(ctx)
	})
	return m.initErr
}

func (m *Manager) doInitialize(ctx context.Context) error {
	m.setLoading(true)

	sess, err := m.backend.GetSession(ctx)
	if err != nil {
		m.handleEvent(ctx, EventInitialSession, nil)
	} else {
		m.handleEvent(ctx, EventInitialSession, sess)
	}

	m.mu.Lock()
	if m.unsubscribe == nil {
		unsub := m.backend.Subscribe(func(ev Event, s *Session) {
			m.handleEvent(context.Background(), ev, s)
		})
		m.unsubscribe = unsub
	}
	m.mu.Unlock()

	return nil
}

func (m *Manager) handleEvent(ctx context.Context, ev Event, sess *Session) {
	switch ev {
	case EventSignedIn, EventTokenRefreshed, EventUserUpdated:
		if err := m.Refresh(ctx); err != nil {
			m.log.Warn("auth refresh after event failed", "event", ev, "error", err)
		}
	case EventSignedOut:
		m.mu.Lock()
		m.state = State{Loading: false}
		m.mu.Unlock()
		m.authLost()
		m.notify()
	case EventInitialSession:
		if sess != nil && sess.User != nil {
			if err := m.Refresh(ctx); err != nil {
				m.log.Warn("initial auth refresh failed", "error", err)
			}
		} else {
			m.setLoading(false)
		}
	}
}

// Refresh re-fetches the current user from the backend and resolves the
// role from the profile table. A failed role lookup is swallowed and
// defaults to customer: staying usable beats being strictly correct here.
func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.breaker.Allow(); err != nil {
		return err
	}

	m.setLoading(true)

	user, err := m.backend.GetUser(ctx)
	if err != nil {
		authErr := Classify(err)
		m.mu.Lock()
		m.state = State{Loading: false, Err: authErr}
		m.mu.Unlock()
		m.notify()
		if m.breaker.Failure() {
			m.log.Error("auth circuit opened", "kind", authErr.Kind.String())
			m.recover(authErr)
		}
		return authErr
	}
	m.breaker.Success()

	role := DefaultRole
	if user != nil {
		if r, roleErr := m.backend.RoleForUser(ctx, user.ID); roleErr == nil && r != "" {
			role = r
		} else if roleErr != nil {
			m.log.Warn("role lookup failed, defaulting", "role", DefaultRole, "error", roleErr)
		}
	}

	m.mu.Lock()
	if user == nil {
		m.state = State{Loading: false}
	} else {
		m.state = State{User: user, Role: role, Authenticated: true, Loading: false}
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// SignOut clears local state before the network call so the UI never
// flickers back to a logged-in view, then best-effort signs out of the
// backend and redirects home. Behavior is identical whether or not the
// network call succeeds.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.state = State{Loading: false}
	m.mu.Unlock()

	if m.store != nil {
		m.store.Delete(route.ReturnToKey)
	}

	if err := m.backend.SignOut(ctx); err != nil {
		m.log.Warn("backend sign-out failed", "error", err)
	}

	m.authLost()
	m.notify()
	if m.loc != nil {
		m.loc.Navigate(route.Home)
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) ClearError() {
	m.mu.Lock()
	m.state.Err = nil
	m.mu.Unlock()
	m.notify()
}

// Subscribe registers a listener and immediately delivers the current
// state. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	state := m.state
	m.mu.Unlock()

	fn(state)

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// notify coalesces rapid successive updates into one delivery.
func (m *Manager) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.debounceDur, func() {
		m.mu.Lock()
		state := m.state
		subs := make([]func(State), 0, len(m.subscribers))
		for _, fn := range m.subscribers {
			subs = append(subs, fn)
		}
		m.mu.Unlock()
		for _, fn := range subs {
			fn(state)
		}
	})
}

func (m *Manager) setLoading(loading bool) {
	m.mu.Lock()
	m.state.Loading = loading
	m.mu.Unlock()
	m.notify()
}

// recover runs when the circuit opens: wipe stale token keys if the state
// looks corrupted, then route the user somewhere definite.
func (m *Manager) recover(authErr *AuthError) {
	detection := DetectCorruptedState(authErr, m.store)
	if detection.HasStaleTokens {
		m.log.Info("clearing stale auth tokens", "keys", len(detection.StaleKeys))
		ForceCleanup(m.store)
	}
	m.authLost()

	if m.loc == nil {
		return
	}
	current := m.loc.Current()
	switch {
	case strings.HasPrefix(current, route.Admin), strings.HasPrefix(current, route.Account):
		if m.store != nil {
			_ = m.store.Set(route.ReturnToKey, current)
		}
		m.loc.Navigate(route.SignIn)
	default:
		m.loc.Navigate(route.Home)
	}
}

func (m *Manager) authLost() {
	if m.OnAuthLost != nil {
		m.OnAuthLost()
	}
}

// Close unsubscribes from backend events and stops the pending
// notification timer.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
	unsub := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
