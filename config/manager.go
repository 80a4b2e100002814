package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	defaultConfigPath = "config/app.yaml"
	envPrefix         = "LOGEMENT_"

	defaultAPIPrefix      = "api"
	defaultRequestTimeout = 15 * time.Second
	defaultCSRFCookie     = "csrf_access_token"
	defaultCSRFHeader     = "X-CSRF-TOKEN"
	defaultListenAddr     = "127.0.0.1:8765"
)

func Load() (*AppConfig, error) {
	return LoadFile(resolveConfigPath())
}

func LoadFile(cfgPath string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if st, err := os.Stat(cfgPath); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(cfgPath, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyEnvAliases(cfg)
	normalizeConfig(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvAliases(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	if v := getEnv("BACKEND_URL", "VITE_BACKEND_URL"); v != "" {
		cfg.Backend.URL = strings.TrimSpace(v)
	}
	if v := getEnv("ENV", "APP_ENV"); v != "" {
		cfg.AppEnv = strings.TrimSpace(v)
	}
	if v := getEnv("PORT", envPrefix+"PORT"); v != "" {
		cfg.Agent.ListenAddr = listenAddrWithPort(cfg.Agent.ListenAddr, v)
	}
	if v := getEnv("DATA_PATH", envPrefix+"DATA_PATH"); v != "" {
		cfg.CookieStore.Path = filepathJoin(v, "cookies.db")
	}
	if v := getEnv(envPrefix + "RECONCILE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Agent.ReconcileMaxAttempts = n
		}
	}
}

func normalizeConfig(cfg *AppConfig) {
	if cfg == nil {
		return
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.Backend.URL = strings.TrimRight(strings.TrimSpace(cfg.Backend.URL), "/")
	cfg.Backend.APIPrefix = strings.Trim(strings.TrimSpace(cfg.Backend.APIPrefix), "/")
	if cfg.Backend.APIPrefix == "" {
		cfg.Backend.APIPrefix = defaultAPIPrefix
	}
	if cfg.Backend.RequestTimeout <= 0 {
		cfg.Backend.RequestTimeout = defaultRequestTimeout
	}

	a := &cfg.Auth
	a.PathPrefix = strings.Trim(strings.TrimSpace(a.PathPrefix), "/")
	a.StatusPath = pathOrDefault(a.StatusPath, "protected")
	a.LoginPath = pathOrDefault(a.LoginPath, "login")
	a.RegisterPath = pathOrDefault(a.RegisterPath, "register")
	a.LogoutPath = pathOrDefault(a.LogoutPath, "logout")
	a.CSRFCookie = strings.TrimSpace(a.CSRFCookie)
	if a.CSRFCookie == "" {
		a.CSRFCookie = defaultCSRFCookie
	}
	a.CSRFHeader = strings.TrimSpace(a.CSRFHeader)
	if a.CSRFHeader == "" {
		a.CSRFHeader = defaultCSRFHeader
	}
	a.LoginView = viewOrDefault(a.LoginView, "/login")
	a.RegisterView = viewOrDefault(a.RegisterView, "/register")
	a.Redirects.Tenant = viewOrDefault(a.Redirects.Tenant, "/lodger")
	a.Redirects.Owner = viewOrDefault(a.Redirects.Owner, "/owner/dashboard")
	a.Redirects.Admin = viewOrDefault(a.Redirects.Admin, "/admin/dashboard")
	a.Redirects.Fallback = viewOrDefault(a.Redirects.Fallback, "/")

	cfg.CookieStore.Path = strings.TrimSpace(cfg.CookieStore.Path)
	cfg.CookieStore.Passphrase = strings.TrimSpace(cfg.CookieStore.Passphrase)

	ag := &cfg.Agent
	ag.ListenAddr = strings.TrimSpace(ag.ListenAddr)
	if ag.ListenAddr == "" {
		ag.ListenAddr = defaultListenAddr
	}
	ag.PublicURL = strings.TrimRight(strings.TrimSpace(ag.PublicURL), "/")
	if ag.PublicURL == "" {
		ag.PublicURL = "http://" + ag.ListenAddr
	}
	ag.MetricsToken = strings.TrimSpace(ag.MetricsToken)
	if strings.TrimSpace(ag.RefreshSchedule) == "" {
		ag.RefreshSchedule = "@every 5m"
	}
	if strings.TrimSpace(ag.ReconcileSchedule) == "" {
		ag.ReconcileSchedule = "@every 30s"
	}
	if ag.ReconcileMaxAttempts <= 0 {
		ag.ReconcileMaxAttempts = 20
	}

	for i := range cfg.Routes {
		cfg.Routes[i].Pattern = strings.TrimSpace(cfg.Routes[i].Pattern)
		for j := range cfg.Routes[i].Roles {
			cfg.Routes[i].Roles[j] = strings.ToLower(strings.TrimSpace(cfg.Routes[i].Roles[j]))
		}
	}

	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// AuthPath joins the configured auth prefix with one of the auth paths.
func (c *AppConfig) AuthPath(p string) string {
	if c == nil || c.Auth.PathPrefix == "" {
		return p
	}
	return c.Auth.PathPrefix + "/" + p
}

func pathOrDefault(v, def string) string {
	v = strings.Trim(strings.TrimSpace(v), "/")
	if v == "" {
		return def
	}
	return v
}

func viewOrDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return v
}

func getEnv(keys ...string) string {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func resolveConfigPath() string {
	if v := getEnv("APP_CONFIG", envPrefix+"APP_CONFIG"); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultConfigPath
}

func listenAddrWithPort(currentAddr, portRaw string) string {
	port := strings.TrimSpace(portRaw)
	if port == "" {
		return currentAddr
	}
	if _, err := strconv.Atoi(port); err != nil {
		return currentAddr
	}
	host := "127.0.0.1"
	parts := strings.Split(strings.TrimSpace(currentAddr), ":")
	if len(parts) > 1 {
		host = strings.Join(parts[:len(parts)-1], ":")
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return host + ":" + port
}

func filepathJoin(base, leaf string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return leaf
	}
	base = strings.TrimRight(base, "/\\")
	return base + string(os.PathSeparator) + leaf
}
