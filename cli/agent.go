package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/satanpticoeur/social-logement-app/api"
	"github.com/satanpticoeur/social-logement-app/core/keeper"
	"github.com/satanpticoeur/social-logement-app/core/payments"
)

const agentShutdownTimeout = 5 * time.Second

func (r *runner) agentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the local agent (session refresh, payment return, metrics)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := r.opts.LoadConfig(r.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a, err := Bootstrap(ctx, cfg, BootstrapOptions{Out: r.opts.Out, LogOut: r.opts.Err, Start: "/"})
			if err != nil {
				return err
			}
			defer a.Close()

			k, err := keeper.New(keeper.Config{
				RefreshSchedule:   cfg.Agent.RefreshSchedule,
				ReconcileSchedule: cfg.Agent.ReconcileSchedule,
			}, a.Auth, a.Reconciler, a.Logger)
			if err != nil {
				return err
			}
			srv := api.NewServer(cfg, a.Logger, api.ServerDeps{
				Status:     k,
				Worker:     k,
				Tracker:    a.Tracker,
				Reconciler: a.Reconciler,
				Registry:   a.Registry,
				Collectors: []prometheus.Collector{keeper.NewCollector(k)},
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(ctx) }()
			r.printf("Agent démarré sur %s (retour paiement: %s%s)\n", cfg.Agent.ListenAddr, cfg.Agent.PublicURL, payments.ReturnPath)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			stopCtx, cancel := context.WithTimeout(context.Background(), agentShutdownTimeout)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				a.Logger.Errorf("graceful shutdown: %v", err)
				return err
			}
			return nil
		},
	}
}
