package config

import "testing"

func validConfig() *AppConfig {
	cfg := &AppConfig{
		AppEnv:  "prod",
		Backend: BackendConfig{URL: "https://api.logement.example"},
	}
	normalizeConfig(cfg)
	return cfg
}

func TestValidateRejectsMissingBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.URL = ""
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for empty backend url")
	}
}

func TestValidateRejectsPlainHTTPInProd(t *testing.T) {
	cfg := validConfig()
	cfg.Backend.URL = "http://api.logement.example"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for http backend in prod")
	}
}

func TestValidateRequiresPassphraseForPersistedStore(t *testing.T) {
	cfg := validConfig()
	cfg.CookieStore.Path = "cookies.db"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for missing passphrase")
	}
	cfg.CookieStore.Passphrase = "correct horse battery staple"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.Agent.RefreshSchedule = "every now and then"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for bad schedule")
	}
}

func TestValidateAllowsDevDefaults(t *testing.T) {
	cfg := &AppConfig{
		AppEnv:      "dev",
		Backend:     BackendConfig{URL: "http://localhost:5000"},
		CookieStore: CookieStoreConfig{Path: "cookies.db"},
	}
	normalizeConfig(cfg)
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error for dev defaults: %v", err)
	}
}

func TestValidateTelemetry(t *testing.T) {
	cfg := validConfig()
	if cfg.Telemetry.SampleRate != 1 {
		t.Fatalf("sample rate default = %v, want 1", cfg.Telemetry.SampleRate)
	}
	cfg.Telemetry.Enabled = true
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for telemetry without endpoint")
	}
	cfg.Telemetry.Endpoint = "otel-collector:4318"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.Telemetry.SampleRate = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for sample rate above 1")
	}
}
