// Package auth tracks the signed-in identity of the storefront and gates
// cart and checkout on it.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"storefront/internal/analytics"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
)

// Listener is called after every session transition with the new session, nil when signed out.
type Listener func(ctx context.Context, s *models.Session)

// Correlator receives the user id for cross-device matching of experiment visitors.
type Correlator interface {
	Initialize(ctx context.Context) error
	VisitorCode() string
	AddData(visitorCode, key, value string)
	Flush(ctx context.Context, visitorCode string) error
}

type GateConfig struct {
	Provider   Provider
	Federator  Federator
	Store      SessionStore
	StoreKey   string
	Sink       analytics.Sink
	Correlator Correlator
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

type subscription struct {
	id int
	fn Listener
}

type Gate struct {
	mu        sync.RWMutex
	session   *models.Session
	listeners []subscription
	nextID    int

	provider   Provider
	federator  Federator
	store      SessionStore
	storeKey   string
	sink       analytics.Sink
	correlator Correlator
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time
}

func NewGate(cfg GateConfig) *Gate {
	sink := cfg.Sink
	if sink == nil {
		sink = analytics.Discard{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	storeKey := cfg.StoreKey
	if storeKey == "" {
		storeKey = "default"
	}

	return &Gate{
		provider:   cfg.Provider,
		federator:  cfg.Federator,
		store:      cfg.Store,
		storeKey:   storeKey,
		sink:       sink,
		correlator: cfg.Correlator,
		metrics:    cfg.Metrics,
		logger:     log.With("component", "auth"),
		now:        time.Now,
	}
}

// CurrentSession returns a copy of the session, or nil when signed out.
func (g *Gate) CurrentSession() *models.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return nil
	}
	s := *g.session
	return &s
}

// Subscribe registers l for future transitions. The returned func removes it.
func (g *Gate) Subscribe(l Listener) func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	id := g.nextID
	g.listeners = append(g.listeners, subscription{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			for i, sub := range g.listeners {
				if sub.id == id {
					g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Restore is the initial-load check: it re-hydrates a persisted session and
// reports the status as user_status_check.
func (g *Gate) Restore(ctx context.Context) *models.Session {
	var sess *models.Session
	if g.store != nil {
		loaded, err := g.store.Load(ctx, g.storeKey)
		switch {
		case err == nil:
			sess = loaded
		case errors.Is(err, ErrNoSession):
		default:
			g.logger.Warn("restore session: %v", err)
		}
	}

	g.mu.Lock()
	g.session = sess
	g.mu.Unlock()

	uid := ""
	if sess != nil {
		uid = sess.UID
		g.correlate(ctx, uid)
	}
	g.emit(ctx, analytics.EventUserStatusCheck, analytics.UserStatusPayload(uid))
	g.metrics.SessionTransition("restore")
	g.notify(ctx)
	return g.CurrentSession()
}

func (g *Gate) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if g.provider == nil {
		return nil, newAuthError(CodeNotAllowed, "Email sign-in is not enabled")
	}
	identity, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, g.authFailure("login", err)
	}
	return g.signedIn(ctx, identity, "login"), nil
}

// SignUp creates the account and signs it in.
func (g *Gate) SignUp(ctx context.Context, email, password, displayName string) (*models.Session, error) {
	if g.provider == nil {
		return nil, newAuthError(CodeNotAllowed, "Email sign-up is not enabled")
	}
	identity, err := g.provider.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, g.authFailure("signup", err)
	}
	return g.signedIn(ctx, identity, "signup"), nil
}

func (g *Gate) SignInWithFederatedProvider(ctx context.Context) (*models.Session, error) {
	if g.federator == nil {
		return nil, newAuthError(CodeNotAllowed, "Federated sign-in is not enabled")
	}
	identity, err := g.federator.SignIn(ctx)
	if err != nil {
		return nil, g.authFailure("federated", err)
	}
	return g.signedIn(ctx, identity, "federated"), nil
}

// ResetPassword asks the provider to start password recovery for email.
// The session is untouched.
func (g *Gate) ResetPassword(ctx context.Context, email string) error {
	pm, ok := g.provider.(PasswordManager)
	if !ok {
		return newAuthError(CodeNotAllowed, "Password reset is not enabled")
	}
	if err := pm.ResetPassword(ctx, email); err != nil {
		return g.authFailure("password_reset", err)
	}
	g.logger.Info("password reset requested")
	g.metrics.SessionTransition("password_reset")
	return nil
}

// UpdatePassword replaces the password of the signed-in email account.
func (g *Gate) UpdatePassword(ctx context.Context, password string) error {
	sess := g.CurrentSession()
	if sess == nil {
		return newAuthError(CodeUserNotFound, "Sign in to change your password")
	}
	pm, ok := g.provider.(PasswordManager)
	if !ok || sess.Provider != models.ProviderPassword {
		return newAuthError(CodeNotAllowed, "This account has no password to change")
	}
	if err := pm.UpdatePassword(ctx, sess.UID, password); err != nil {
		return g.authFailure("password_update", err)
	}
	g.logger.Info("password updated for %s", sess.UID)
	g.metrics.SessionTransition("password_update")
	return nil
}

// SignOut always succeeds locally. A failure to forget the persisted session is only logged.
func (g *Gate) SignOut(ctx context.Context) {
	g.mu.Lock()
	had := g.session != nil
	g.session = nil
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.Delete(ctx, g.storeKey); err != nil {
			g.logger.Warn("forget session: %v", err)
		}
	}

	if had {
		g.emit(ctx, analytics.EventLogout, analytics.LogoutPayload())
	}
	g.metrics.SessionTransition("logout")
	g.notify(ctx)
}

func (g *Gate) signedIn(ctx context.Context, identity *models.Identity, kind string) *models.Session {
	sess := &models.Session{Identity: *identity, SignedInAt: g.now().UTC()}

	g.mu.Lock()
	g.session = sess
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.Save(ctx, g.storeKey, sess); err != nil {
			g.logger.Warn("persist session: %v", err)
		}
	}

	g.logger.Info("signed in %s via %s", identity.UID, identity.Provider)
	g.emit(ctx, analytics.EventLogin, analytics.LoginPayload(identity.UID))
	g.correlate(ctx, identity.UID)
	g.metrics.SessionTransition(kind)
	g.notify(ctx)
	return g.CurrentSession()
}

func (g *Gate) authFailure(kind string, err error) error {
	g.metrics.SessionTransition(kind + "_failed")
	if _, ok := AsAuthError(err); ok {
		return err
	}
	g.logger.Error("%s: %v", kind, err)
	return &AuthError{Code: CodeProviderFailure, Message: "Authentication is unavailable, try again later", Err: err}
}

func (g *Gate) emit(ctx context.Context, event string, payload analytics.Payload) {
	if err := g.sink.Emit(ctx, event, payload); err != nil {
		g.logger.Warn("analytics %s: %v", event, err)
	}
}

func (g *Gate) correlate(ctx context.Context, uid string) {
	if g.correlator == nil || uid == "" {
		return
	}
	if err := g.correlator.Initialize(ctx); err != nil {
		g.logger.Warn("experiment custom data: %v", err)
		return
	}
	visitorCode := g.correlator.VisitorCode()
	g.correlator.AddData(visitorCode, "user_id", uid)
	if err := g.correlator.Flush(ctx, visitorCode); err != nil {
		g.logger.Warn("experiment custom data: %v", err)
	}
}

func (g *Gate) notify(ctx context.Context) {
	g.mu.RLock()
	listeners := make([]Listener, 0, len(g.listeners))
	for _, sub := range g.listeners {
		listeners = append(listeners, sub.fn)
	}
	g.mu.RUnlock()

	sess := g.CurrentSession()
	for _, l := range listeners {
		l(ctx, sess)
	}
}
