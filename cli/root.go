// Package cli is the logement command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/satanpticoeur/social-logement-app/config"
	"github.com/satanpticoeur/social-logement-app/core/appmeta"
	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/guard"
)

var errNotAuthenticated = errors.New("vous devez être connecté")

// Options overrides the process environment, mainly for tests.
type Options struct {
	Out        io.Writer
	Err        io.Writer
	LoadConfig func(path string) (*config.AppConfig, error)
	// Interactive reports whether prompts may be shown.
	Interactive func() bool
}

type runner struct {
	opts       Options
	configPath string
}

func Execute(ctx context.Context) error {
	return NewRootCommand(Options{}).ExecuteContext(ctx)
}

func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = loadConfig
	}
	if opts.Interactive == nil {
		opts.Interactive = stdinIsTerminal
	}
	r := &runner{opts: opts}

	root := &cobra.Command{
		Use:           "logement",
		Short:         "Client for the social-logement rental platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)
	root.PersistentFlags().StringVar(&r.configPath, "config", "", "path to the YAML config (default $APP_CONFIG or config/app.yaml)")

	root.AddCommand(
		r.statusCmd(),
		r.loginCmd(),
		r.registerCmd(),
		r.logoutCmd(),
		r.openCmd(),
		r.paymentsCmd(),
		r.payCmd(),
		r.roomsCmd(),
		r.housesCmd(),
		r.clientsCmd(),
		r.contractsCmd(),
		r.requestsCmd(),
		r.agentCmd(),
		r.versionCmd(),
	)
	return root
}

func (r *runner) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			r.printf("%s %s\n", appmeta.AppName, appmeta.AppVersion)
			return nil
		},
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	if strings.TrimSpace(path) != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func home(*config.AppConfig) string { return "/" }

// open loads the config, wires the app on the start view and resolves the
// session.
func (r *runner) open(ctx context.Context, start func(*config.AppConfig) string) (*App, auth.StatusOutcome, error) {
	cfg, err := r.opts.LoadConfig(r.configPath)
	if err != nil {
		return nil, auth.StatusUnavailable, fmt.Errorf("config: %w", err)
	}
	a, err := Bootstrap(ctx, cfg, BootstrapOptions{Out: r.opts.Out, Start: start(cfg)})
	if err != nil {
		return nil, auth.StatusUnavailable, err
	}
	return a, a.Mount(ctx), nil
}

// withSession opens the app and enters view through the route guard.
func (r *runner) withSession(cmd *cobra.Command, view string, fn func(ctx context.Context, a *App, s auth.Session) error) error {
	ctx := cmd.Context()
	a, outcome, err := r.open(ctx, home)
	if err != nil {
		return err
	}
	defer a.Close()
	if outcome == auth.StatusUnavailable {
		return fmt.Errorf("serveur injoignable (%s)", a.Config.Backend.URL)
	}
	if view != "" {
		switch d := a.Guard.Enter(view); d.Outcome {
		case guard.Render:
		case guard.Pending:
			return fmt.Errorf("%s: session en cours de chargement", view)
		default:
			return fmt.Errorf("%s: accès refusé, redirigé vers %s", view, d.Target)
		}
	}
	sess, ok := a.Auth.State().Current()
	if !ok {
		return errNotAuthenticated
	}
	return fn(ctx, a, sess)
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.opts.Out, format, args...)
}
