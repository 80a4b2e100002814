package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satanpticoeur/social-logement-app/config"
	"github.com/satanpticoeur/social-logement-app/core/apiclient"
	"github.com/satanpticoeur/social-logement-app/core/appmeta"
	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/cookiestore"
	"github.com/satanpticoeur/social-logement-app/core/guard"
	"github.com/satanpticoeur/social-logement-app/core/nav"
	"github.com/satanpticoeur/social-logement-app/core/netguard"
	"github.com/satanpticoeur/social-logement-app/core/notify"
	"github.com/satanpticoeur/social-logement-app/core/payments"
	"github.com/satanpticoeur/social-logement-app/core/rbac"
	"github.com/satanpticoeur/social-logement-app/core/rental"
	"github.com/satanpticoeur/social-logement-app/core/telemetry"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

// App is one wired client session: cookie store, request client, session
// state, navigation and route guard.
type App struct {
	Config   *config.AppConfig
	Logger   *utils.Logger
	Cookies  *cookiestore.Store
	Client   *apiclient.Client
	Registry *prometheus.Registry
	Auth     *auth.Manager
	Nav      *nav.History
	Routes   *rbac.RoutePolicy
	Guard    *guard.Guard
	Notifier notify.Notifier
	Rental   *rental.API
	Payments *payments.Service
	Tracker  *payments.Tracker
	// Reconciler checks tracked checkouts against the backend.
	Reconciler *payments.Reconciler
	Telemetry  *telemetry.Provider
}

type BootstrapOptions struct {
	// Out receives notices.
	Out io.Writer
	// LogOut receives logs. Nil discards them unless the level is debug.
	LogOut io.Writer
	// Start is the view the session opens on.
	Start string
}

// Bootstrap wires an App for cfg.
func Bootstrap(ctx context.Context, cfg *config.AppConfig, opts BootstrapOptions) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logOut := opts.LogOut
	if logOut == nil {
		logOut = io.Discard
		if cfg.Log.Level == "debug" {
			logOut = out
		}
	}
	logger := utils.NewLoggerWith(logOut, cfg.Log.Level, cfg.Log.Format)

	store, err := cookiestore.Open(ctx, cookiestore.Options{
		Path:       cfg.CookieStore.Path,
		Passphrase: cfg.CookieStore.Passphrase,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("cookie store: %w", err)
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
		ServiceName:    appmeta.AppName,
		ServiceVersion: appmeta.AppVersion,
		Environment:    cfg.AppEnv,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	acfg := apiclient.Config{
		BaseURL:        cfg.Backend.URL,
		APIPrefix:      cfg.Backend.APIPrefix,
		CSRFCookie:     cfg.Auth.CSRFCookie,
		CSRFHeader:     cfg.Auth.CSRFHeader,
		Timeout:        cfg.Backend.RequestTimeout,
		TracerProvider: tel.TracerProvider(),
		Propagator:     tel.Propagator(),
	}
	// A nil reader reads the store's document view, which hides HttpOnly cookies.
	client, err := apiclient.New(acfg, &http.Client{Jar: store}, nil, logger, apiclient.NewMetrics(reg))
	if err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	notifier := notify.Multi{notify.NewTerminal(out), notify.Log{Logger: logger}}
	history := nav.NewHistory(opts.Start)
	state := auth.NewState()
	manager := auth.NewManager(client, state, history, notifier, logger, auth.Options{
		Paths: auth.Paths{
			Status:   cfg.AuthPath(cfg.Auth.StatusPath),
			Login:    cfg.AuthPath(cfg.Auth.LoginPath),
			Register: cfg.AuthPath(cfg.Auth.RegisterPath),
			Logout:   cfg.AuthPath(cfg.Auth.LogoutPath),
		},
		LoginView:             cfg.Auth.LoginView,
		LogoutClearsOnFailure: cfg.Auth.LogoutClearsOnFailure,
	})
	manager.AddHook(auth.RoleRedirect(history, auth.Redirects{
		Tenant:   cfg.Auth.Redirects.Tenant,
		Owner:    cfg.Auth.Redirects.Owner,
		Admin:    cfg.Auth.Redirects.Admin,
		Fallback: cfg.Auth.Redirects.Fallback,
	}, cfg.Auth.LoginView, cfg.Auth.RegisterView))
	client.OnAuthFailure(manager.Invalidate)

	rules := rbac.DefaultRules()
	for _, r := range cfg.Routes {
		rules = append(rules, rbac.Rule{Pattern: r.Pattern, Roles: r.Roles})
	}
	routes, err := rbac.NewRoutePolicy(rules)
	if err != nil {
		_ = store.Close()
		_ = tel.Shutdown(ctx)
		return nil, err
	}

	tracker := payments.NewTracker()
	rentalAPI := rental.New(client)
	checkout := payments.NewService(client, tracker, cfg.Agent.PublicURL, logger)
	if cfg.IsDev() {
		checkout.SetURLPolicy(netguard.DevPolicy())
	}
	return &App{
		Config:     cfg,
		Logger:     logger,
		Cookies:    store,
		Client:     client,
		Registry:   reg,
		Auth:       manager,
		Nav:        history,
		Routes:     routes,
		Guard:      guard.New(routes, state, history, notifier),
		Notifier:   notifier,
		Rental:     rentalAPI,
		Payments:   checkout,
		Tracker:    tracker,
		Reconciler: payments.NewReconciler(rentalAPI, tracker, notifier, logger, cfg.Agent.ReconcileMaxAttempts),
		Telemetry:  tel,
	}, nil
}

// Mount resolves the session the way the app does on load.
func (a *App) Mount(ctx context.Context) auth.StatusOutcome {
	return a.Auth.CheckStatus(ctx)
}

// Close flushes pending spans and closes the cookie store.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Telemetry.Shutdown(ctx); err != nil && a.Logger != nil {
		a.Logger.Warnf("telemetry shutdown: %v", err)
	}
	if a.Cookies == nil {
		return nil
	}
	return a.Cookies.Close()
}
