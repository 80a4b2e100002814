package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Backend.URL) == "" {
		return fmt.Errorf("backend.url must be set (LOGEMENT_BACKEND_URL or BACKEND_URL)")
	}
	u, err := url.Parse(cfg.Backend.URL)
	if err != nil {
		return fmt.Errorf("backend.url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.url must be an absolute http(s) url, got %q", cfg.Backend.URL)
	}
	if !cfg.IsDev() && u.Scheme != "https" {
		return fmt.Errorf("backend.url must use https outside APP_ENV=dev")
	}
	if cfg.CookieStore.Path != "" && !cfg.IsDev() && cfg.CookieStore.Passphrase == "" {
		return fmt.Errorf("cookie_store.passphrase must be set outside APP_ENV=dev")
	}
	if _, err := scheduleParser.Parse(cfg.Agent.RefreshSchedule); err != nil {
		return fmt.Errorf("agent.refresh_schedule: %w", err)
	}
	if _, err := scheduleParser.Parse(cfg.Agent.ReconcileSchedule); err != nil {
		return fmt.Errorf("agent.reconcile_schedule: %w", err)
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint must be set when telemetry is enabled")
	}
	if cfg.Telemetry.SampleRate < 0 || cfg.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1]")
	}
	for _, r := range cfg.Routes {
		if !strings.HasPrefix(r.Pattern, "/") {
			return fmt.Errorf("routes: pattern %q must start with /", r.Pattern)
		}
	}
	return nil
}
