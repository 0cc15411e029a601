package auth

import (
	"context"
	"fmt"

	"arvore/internal/api"
	"arvore/internal/form"
	"arvore/internal/logging"
	"arvore/internal/session"
)

// LoginRoute is where every logout lands.
const LoginRoute = "/login"

// Authenticator is the part of the API client the service needs.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (*api.AuthResponse, error)
	Register(ctx context.Context, reg api.Registration) (*api.AuthResponse, error)
}

// Navigator moves the user to a route.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Service performs every auth state transition and keeps the session store
// in step with State.
type Service struct {
	state  *State
	store  *session.Store
	client Authenticator
	nav    Navigator
}

// NewService wires a service. nav may be nil when there is nowhere to
// navigate, as in one-shot CLI commands.
func NewService(state *State, store *session.Store, client Authenticator, nav Navigator) *Service {
	return &Service{state: state, store: store, client: client, nav: nav}
}

// SetNavigator replaces the navigator. Call before the UI starts.
func (s *Service) SetNavigator(nav Navigator) { s.nav = nav }

// State returns the state this service writes.
func (s *Service) State() *State { return s.state }

// Login authenticates and persists the returned session. A rejected login
// leaves the state and the store untouched.
func (s *Service) Login(ctx context.Context, creds api.Credentials) (*api.AuthResponse, error) {
	if err := form.Login(creds.Username, creds.Password); err != nil {
		return nil, err
	}
	res, err := s.client.Login(ctx, creds)
	if err != nil {
		logging.AuthWarn("login failed for %q: %v", creds.Username, err)
		logging.Audit().Session(logging.AuditLogin, creds.Username, err)
		return nil, err
	}
	if err := s.establish(ctx, res); err != nil {
		return nil, err
	}
	logging.Auth("login succeeded for %q (user id %d)", res.Username, res.UserID)
	logging.Audit().Session(logging.AuditLogin, res.Username, nil)
	return res, nil
}

// Register creates an account, then behaves like Login. Form rules and the
// password confirmation are checked before any request is made.
func (s *Service) Register(ctx context.Context, reg api.Registration) (*api.AuthResponse, error) {
	if err := form.Register(reg.Username, reg.Password, reg.Password2); err != nil {
		logging.AuthDebug("registration rejected locally: %v", err)
		return nil, err
	}
	res, err := s.client.Register(ctx, reg)
	if err != nil {
		logging.AuthWarn("registration failed for %q: %v", reg.Username, err)
		logging.Audit().Session(logging.AuditRegister, reg.Username, err)
		return nil, err
	}
	if err := s.establish(ctx, res); err != nil {
		return nil, err
	}
	logging.Auth("registered %q (user id %d)", res.Username, res.UserID)
	logging.Audit().Session(logging.AuditRegister, res.Username, nil)
	return res, nil
}

func (s *Service) establish(ctx context.Context, res *api.AuthResponse) error {
	sess := session.Session{Token: res.Token, UserID: res.UserID, Username: res.Username}
	if err := s.store.Save(ctx, sess); err != nil {
		// Drop whatever part of the session was written.
		if cerr := s.store.Clear(ctx); cerr != nil {
			logging.AuthWarn("failed to roll back partial session: %v", cerr)
		}
		return fmt.Errorf("persist session: %w", err)
	}
	s.state.login(sess)
	return nil
}

// Logout clears the store and the state, then navigates to the login route.
// Navigation happens even if clearing the store fails.
func (s *Service) Logout(ctx context.Context) error {
	return s.logout(ctx, logging.AuditLogout)
}

func (s *Service) logout(ctx context.Context, kind logging.AuditEventType) error {
	user := s.state.Username()
	err := s.store.Clear(ctx)
	if err != nil {
		logging.AuthWarn("failed to clear session store: %v", err)
	}
	s.state.logout()
	logging.Auth("logged out")
	logging.Audit().Session(kind, user, err)
	if s.nav != nil {
		s.nav.Navigate(LoginRoute)
	}
	return err
}

// ForceLogout is the API client's unauthorized handler.
func (s *Service) ForceLogout(ctx context.Context) {
	logging.AuthWarn("session rejected, forcing logout")
	_ = s.logout(context.WithoutCancel(ctx), logging.AuditForceLogout)
}

// CheckToken re-reads the store and recomputes the signal. The session
// counts only when token, user id and username are all present.
func (s *Service) CheckToken(ctx context.Context) (bool, error) {
	sess, err := s.store.Load(ctx)
	if err != nil {
		s.state.logout()
		return false, fmt.Errorf("load session: %w", err)
	}
	if sess.Complete() {
		s.state.login(sess)
		logging.AuthDebug("token found, user %q authenticated", sess.Username)
		return true, nil
	}
	s.state.logout()
	logging.AuthDebug("no complete session in store")
	return false, nil
}

// SetCurrentUserPerson makes person id (named name) "me". The token and the
// authenticated signal are unchanged.
func (s *Service) SetCurrentUserPerson(ctx context.Context, id int, name string) error {
	if err := s.store.SetIdentity(ctx, id, name); err != nil {
		return fmt.Errorf("set current person: %w", err)
	}
	s.state.impersonate(id, name)
	logging.Auth("current person set to %q (id %d)", name, id)
	logging.AuditAs(s.state.Username()).IdentitySet(id, name)
	return nil
}
