package config

import "time"

type AppConfig struct {
	AppEnv      string            `yaml:"app_env" env:"LOGEMENT_APP_ENV"`
	Backend     BackendConfig     `yaml:"backend"`
	Auth        AuthConfig        `yaml:"auth"`
	CookieStore CookieStoreConfig `yaml:"cookie_store"`
	Agent       AgentConfig       `yaml:"agent"`
	Routes      []RouteRule       `yaml:"routes"`
	Log         LogConfig         `yaml:"log"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

func (c *AppConfig) IsDev() bool {
	if c == nil {
		return false
	}
	return c.AppEnv == "dev"
}

type BackendConfig struct {
	URL            string        `yaml:"url" env:"LOGEMENT_BACKEND_URL"`
	APIPrefix      string        `yaml:"api_prefix" env:"LOGEMENT_API_PREFIX"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LOGEMENT_REQUEST_TIMEOUT"`
}

type AuthConfig struct {
	// PathPrefix is prepended to the four auth paths ("auth" for the /api/auth/* variant).
	PathPrefix            string          `yaml:"path_prefix" env:"LOGEMENT_AUTH_PATH_PREFIX"`
	StatusPath            string          `yaml:"status_path"`
	LoginPath             string          `yaml:"login_path"`
	RegisterPath          string          `yaml:"register_path"`
	LogoutPath            string          `yaml:"logout_path"`
	CSRFCookie            string          `yaml:"csrf_cookie" env:"LOGEMENT_CSRF_COOKIE"`
	CSRFHeader            string          `yaml:"csrf_header" env:"LOGEMENT_CSRF_HEADER"`
	LogoutClearsOnFailure bool            `yaml:"logout_clears_on_failure" env:"LOGEMENT_LOGOUT_CLEARS_ON_FAILURE"`
	LoginView             string          `yaml:"login_view"`
	RegisterView          string          `yaml:"register_view"`
	Redirects             RedirectsConfig `yaml:"redirects"`
}

type RedirectsConfig struct {
	Tenant   string `yaml:"locataire"`
	Owner    string `yaml:"proprietaire"`
	Admin    string `yaml:"admin"`
	Fallback string `yaml:"fallback"`
}

type CookieStoreConfig struct {
	// Path of the SQLite file; empty keeps cookies in memory only.
	Path       string `yaml:"path" env:"LOGEMENT_COOKIE_STORE_PATH"`
	Passphrase string `yaml:"passphrase" env:"LOGEMENT_COOKIE_STORE_PASSPHRASE"`
}

type AgentConfig struct {
	ListenAddr           string `yaml:"listen_addr" env:"LOGEMENT_AGENT_LISTEN_ADDR"`
	PublicURL            string `yaml:"public_url" env:"LOGEMENT_AGENT_PUBLIC_URL"`
	MetricsEnabled       bool   `yaml:"metrics_enabled" env:"LOGEMENT_METRICS_ENABLED"`
	MetricsToken         string `yaml:"metrics_token" env:"LOGEMENT_METRICS_TOKEN"`
	RefreshSchedule      string `yaml:"refresh_schedule"`
	ReconcileSchedule    string `yaml:"reconcile_schedule"`
	ReconcileMaxAttempts int    `yaml:"reconcile_max_attempts"`
}

type RouteRule struct {
	Pattern string   `yaml:"pattern"`
	Roles   []string `yaml:"roles"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOGEMENT_LOG_LEVEL"`
	Format string `yaml:"format" env:"LOGEMENT_LOG_FORMAT"`
}

// TelemetryConfig controls OTLP trace export of backend API spans.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled" env:"LOGEMENT_TELEMETRY_ENABLED"`
	// Endpoint is the OTLP/HTTP collector as host:port.
	Endpoint   string  `yaml:"endpoint" env:"LOGEMENT_OTLP_ENDPOINT"`
	Insecure   bool    `yaml:"insecure" env:"LOGEMENT_OTLP_INSECURE"`
	SampleRate float64 `yaml:"sample_rate" env:"LOGEMENT_TRACE_SAMPLE_RATE"`
}
