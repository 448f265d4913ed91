// Package session tracks whether, and as whom, the client is authenticated.
// It is the only place that turns a stored credential into request
// authorization.
package session

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"

	"github.com/atinyakov/chemora/internal/client/api"
	"github.com/atinyakov/chemora/internal/models"
	"go.uber.org/zap"
)

// DemoUser is the reserved identity that is always accepted on restore.
const DemoUser = "admin"

const (
	msgInvalidCredentials = "Invalid credentials"
	msgConnectionFailed   = "Connection failed. Please check if the server is running."
	msgPasswordMismatch   = "Passwords do not match"
	msgPasswordTooShort   = "Password must be at least 6 characters long"
	msgRequiredFields     = "Username, password, and email are required"

	minPasswordLen = 6
)

// Store persists the credential and the locally registered usernames.
type Store interface {
	LoadCredential() (models.Credential, bool, error)
	SaveCredential(models.Credential) error
	ClearCredential() error
	RegisteredUsers() ([]string, error)
	AddRegisteredUser(username string) error
}

// Authenticator is the server side of login and registration.
type Authenticator interface {
	Login(ctx context.Context, cred models.Credential) error
	Register(ctx context.Context, req models.RegisterRequest) error
}

// State is a snapshot of the session.
type State struct {
	Authenticated bool
	Username      string
}

// Reason tells subscribers what caused a transition.
type Reason int

const (
	Restored Reason = iota + 1
	LoggedIn
	LoggedOut
)

// Change is delivered to subscribers after every transition.
type Change struct {
	State  State
	Reason Reason
}

// Status is the outcome of a login attempt.
type Status int

const (
	OK Status = iota
	InvalidCredentials
	ConnectionFailed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case InvalidCredentials:
		return "invalid credentials"
	case ConnectionFailed:
		return "connection failed"
	default:
		return "unknown"
	}
}

// LoginResult is what Login resolves to. Message is empty on OK.
type LoginResult struct {
	Status  Status
	Message string
}

// SignupForm is the account creation input.
type SignupForm struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Confirm   string
}

// Manager owns the session state and the authorizer derived from it.
type Manager struct {
	store Store
	auth  Authenticator
	log   *zap.Logger

	mu         sync.RWMutex
	state      State
	authorizer api.Authorizer
	subs       []func(Change)
}

// NewManager returns an anonymous session.
func NewManager(store Store, auth Authenticator, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:      store,
		auth:       auth,
		log:        log,
		authorizer: api.NoAuth,
	}
}

// Subscribe registers fn to be called after every state transition.
func (m *Manager) Subscribe(fn func(Change)) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// State returns the current session snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Authorizer returns the authorization to attach to outgoing requests.
// It is api.NoAuth while anonymous.
func (m *Manager) Authorizer() api.Authorizer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authorizer
}

// LocalPlausibilityCheck restores a stored session without contacting the
// server. A stored credential is trusted when its username is the demo
// identity or was registered from this client. It reports whether the
// session is now authenticated.
func (m *Manager) LocalPlausibilityCheck() bool {
	cred, ok, err := m.store.LoadCredential()
	if err != nil {
		m.log.Warn("failed to read stored credential", zap.Error(err))
		return false
	}
	if !ok || cred.Username == "" {
		return false
	}

	if cred.Username != DemoUser {
		users, err := m.store.RegisteredUsers()
		if err != nil {
			m.log.Warn("failed to read registered users", zap.Error(err))
			return false
		}
		if !slices.Contains(users, cred.Username) {
			m.log.Debug("stored credential not recognized locally", zap.String("username", cred.Username))
			return false
		}
	}

	m.transition(Change{State: State{Authenticated: true, Username: cred.Username}, Reason: Restored}, basic(cred))
	return true
}

// ServerAuthenticate verifies cred against the server. It changes no state.
func (m *Manager) ServerAuthenticate(ctx context.Context, cred models.Credential) error {
	return m.auth.Login(ctx, cred)
}

// Login verifies cred with the server and, on success, persists it and
// authenticates the session. Failures leave the session anonymous.
func (m *Manager) Login(ctx context.Context, cred models.Credential) LoginResult {
	if err := m.ServerAuthenticate(ctx, cred); err != nil {
		res := loginFailure(err)
		m.log.Info("login failed",
			zap.String("username", cred.Username),
			zap.Stringer("status", res.Status),
			zap.Error(err))
		return res
	}

	if err := m.store.SaveCredential(cred); err != nil {
		// The session still works for this process.
		m.log.Error("failed to persist credential", zap.Error(err))
	}
	m.transition(Change{State: State{Authenticated: true, Username: cred.Username}, Reason: LoggedIn}, basic(cred))
	m.log.Info("logged in", zap.String("username", cred.Username))
	return LoginResult{Status: OK}
}

func loginFailure(err error) LoginResult {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return LoginResult{Status: ConnectionFailed, Message: msgConnectionFailed}
	}
	switch {
	case apiErr.Kind == api.KindConnection:
		return LoginResult{Status: ConnectionFailed, Message: msgConnectionFailed}
	case apiErr.Kind == api.KindServer && apiErr.StatusCode >= http.StatusInternalServerError:
		return LoginResult{Status: ConnectionFailed, Message: msgConnectionFailed}
	default:
		return LoginResult{Status: InvalidCredentials, Message: msgInvalidCredentials}
	}
}

// Logout forgets the stored credential and drops authorization.
func (m *Manager) Logout() {
	if err := m.store.ClearCredential(); err != nil {
		m.log.Error("failed to clear credential", zap.Error(err))
	}
	m.transition(Change{Reason: LoggedOut}, api.NoAuth)
	m.log.Info("logged out")
}

// Register creates an account on the server and remembers the username
// locally. It does not log in.
func (m *Manager) Register(ctx context.Context, form SignupForm) error {
	if form.Username == "" || form.Email == "" || form.Password == "" {
		return api.NewValidationError(msgRequiredFields)
	}
	if form.Password != form.Confirm {
		return api.NewValidationError(msgPasswordMismatch)
	}
	if len(form.Password) < minPasswordLen {
		return api.NewValidationError(msgPasswordTooShort)
	}

	err := m.auth.Register(ctx, models.RegisterRequest{
		Username:  form.Username,
		Password:  form.Password,
		Email:     form.Email,
		FirstName: form.FirstName,
		LastName:  form.LastName,
	})
	if err != nil {
		return err
	}
	if err := m.store.AddRegisteredUser(form.Username); err != nil {
		m.log.Error("failed to remember registered user", zap.Error(err))
	}
	return nil
}

// transition installs the authorizer before publishing the new state, so a
// subscriber that starts requests is already authorized.
func (m *Manager) transition(c Change, a api.Authorizer) {
	m.mu.Lock()
	m.authorizer = a
	m.state = c.State
	subs := slices.Clone(m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}

func basic(cred models.Credential) api.Authorizer {
	return api.BasicAuth{Username: cred.Username, Password: cred.Password}
}
