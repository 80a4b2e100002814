package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/satanpticoeur/social-logement-app/core/apiclient"
	"github.com/satanpticoeur/social-logement-app/core/nav"
	"github.com/satanpticoeur/social-logement-app/core/notify"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

const unexpectedError = "Une erreur inattendue est survenue."

// Requester is the subset of the request client the manager needs.
type Requester interface {
	Do(ctx context.Context, endpoint string, opts apiclient.Options) (json.RawMessage, error)
}

// Paths are the auth endpoints relative to the API root.
type Paths struct {
	Status   string
	Login    string
	Register string
	Logout   string
}

func DefaultPaths() Paths {
	return Paths{Status: "protected", Login: "login", Register: "register", Logout: "logout"}
}

type Options struct {
	Paths     Paths
	LoginView string
	// LogoutClearsOnFailure drops the local session even when the backend
	// rejects the logout call.
	LogoutClearsOnFailure bool
}

// Hook runs after a session has been established by login or status check.
type Hook func(ctx context.Context, s Session)

// StatusOutcome summarizes a status check. It is informational; the state
// has already been updated when CheckStatus returns.
type StatusOutcome int

const (
	StatusAuthenticated StatusOutcome = iota
	StatusAnonymous
	StatusUnavailable
)

func (o StatusOutcome) String() string {
	switch o {
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unavailable"
	}
}

type Manager struct {
	client   Requester
	state    *State
	nav      nav.Navigator
	notifier notify.Notifier
	logger   *utils.Logger
	opts     Options
	hooks    []Hook
}

func NewManager(client Requester, state *State, navigator nav.Navigator, notifier notify.Notifier, logger *utils.Logger, opts Options) *Manager {
	def := DefaultPaths()
	if opts.Paths.Status == "" {
		opts.Paths.Status = def.Status
	}
	if opts.Paths.Login == "" {
		opts.Paths.Login = def.Login
	}
	if opts.Paths.Register == "" {
		opts.Paths.Register = def.Register
	}
	if opts.Paths.Logout == "" {
		opts.Paths.Logout = def.Logout
	}
	if opts.LoginView == "" {
		opts.LoginView = "/login"
	}
	if state == nil {
		state = NewState()
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Manager{client: client, state: state, nav: navigator, notifier: notifier, logger: logger, opts: opts}
}

func (m *Manager) State() *State { return m.state }

// AddHook registers a post-auth hook. Hooks run in registration order.
func (m *Manager) AddHook(h Hook) {
	if h != nil {
		m.hooks = append(m.hooks, h)
	}
}

// CheckStatus asks the backend who the cookies belong to and updates the
// state. It never returns an error: anything other than a complete 200
// payload leaves the state anonymous.
func (m *Manager) CheckStatus(ctx context.Context) StatusOutcome {
	m.state.SetLoading(true)
	defer m.state.SetLoading(false)

	raw, err := m.client.Do(ctx, m.opts.Paths.Status, apiclient.Options{Method: http.MethodGet})
	if err != nil {
		m.state.Clear()
		if status, ok := apiclient.StatusOf(err); ok {
			if status == http.StatusUnauthorized || status == http.StatusForbidden {
				m.logger.Debugf("auth status: not authenticated (HTTP %d)", status)
				return StatusAnonymous
			}
			m.logger.Warnf("auth status check failed: HTTP %d", status)
			return StatusUnavailable
		}
		m.logger.Warnf("auth status check failed: %v", err)
		return StatusUnavailable
	}
	sess, err := decodeSession(raw)
	if err != nil {
		m.state.Clear()
		m.logger.Warnf("auth status check: %v", err)
		return StatusUnavailable
	}
	m.state.Set(sess)
	m.runHooks(ctx, sess)
	return StatusAuthenticated
}

func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "mot_de_passe": password}
	raw, err := m.client.Do(ctx, m.opts.Paths.Login, apiclient.Options{Method: http.MethodPost, Body: body})
	if err == nil {
		var sess Session
		sess, err = decodeSession(raw)
		if err == nil {
			m.state.Set(sess)
			notify.Success(m.notifier, "Connexion réussie", fmt.Sprintf("Bienvenue, %s !", sess.DisplayName))
			m.logger.With("user_id", sess.UserID, "role", string(sess.Role)).Printf("login succeeded")
			m.runHooks(ctx, sess)
			return sess, nil
		}
	}
	m.logger.Warnf("login failed: %v", err)
	notify.Error(m.notifier, "Échec de la connexion", describe(err))
	return Session{}, err
}

// Register creates an account. The session is not modified: the user still
// has to log in.
func (m *Manager) Register(ctx context.Context, reg Registration) (bool, error) {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		notify.Error(m.notifier, "Échec de l'inscription", err.Error())
		return false, err
	}
	raw, err := m.client.Do(ctx, m.opts.Paths.Register, apiclient.Options{Method: http.MethodPost, Body: reg})
	if err != nil {
		m.logger.Warnf("register failed: %v", err)
		notify.Error(m.notifier, "Échec de l'inscription", describe(err))
		return false, err
	}
	var resp struct {
		Message string `json:"message"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &resp)
	}
	notify.Success(m.notifier, "Inscription réussie", resp.Message)
	return true, nil
}

func (m *Manager) Logout(ctx context.Context) error {
	_, err := m.client.Do(ctx, m.opts.Paths.Logout, apiclient.Options{Method: http.MethodPost})
	if err != nil {
		m.logger.Warnf("logout failed: %v", err)
		desc := describe(err)
		if _, ok := apiclient.StatusOf(err); ok {
			desc = "Échec de la déconnexion."
		}
		notify.Error(m.notifier, "Erreur de déconnexion", desc)
		if m.opts.LogoutClearsOnFailure {
			m.state.Clear()
		}
		return err
	}
	m.state.Clear()
	notify.Info(m.notifier, "Déconnexion", "Vous avez été déconnecté.")
	if m.nav != nil {
		m.nav.Navigate(m.opts.LoginView)
	}
	return nil
}

// Invalidate drops the session after the backend rejected the cookies. It
// matches apiclient.AuthFailureHandler.
func (m *Manager) Invalidate(_ context.Context, err *apiclient.HTTPError) {
	if !m.state.IsAuthenticated() {
		return
	}
	m.state.Clear()
	msg := ""
	if err != nil {
		msg = err.Message
	}
	m.logger.Printf("session invalidated by backend: %s", msg)
}

func (m *Manager) runHooks(ctx context.Context, s Session) {
	for _, h := range m.hooks {
		h(ctx, s)
	}
}

func describe(err error) string {
	if errors.Is(err, ErrIncompleteSession) {
		return "Réponse du serveur incomplète."
	}
	return apiclient.Message(err, unexpectedError)
}
