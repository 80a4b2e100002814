package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/satanpticoeur/social-logement-app/config"
	"github.com/satanpticoeur/social-logement-app/core/cookiestore"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

// migrate prepares the cookie store file ahead of the first client run.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger := utils.NewLoggerWith(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if cfg.CookieStore.Path == "" {
		logger.Printf("cookie_store.path is empty: nothing to migrate")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := cookiestore.Open(ctx, cookiestore.Options{
		Path:       cfg.CookieStore.Path,
		Passphrase: cfg.CookieStore.Passphrase,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatalf("cookie store: %v", err)
	}
	defer store.Close()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		logger.Fatalf("schema version: %v", err)
	}
	logger.With("path", cfg.CookieStore.Path, "version", version, "encrypted", store.Encrypted()).Printf("migrations applied")
}
