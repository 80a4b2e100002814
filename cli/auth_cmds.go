package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satanpticoeur/social-logement-app/config"
	"github.com/satanpticoeur/social-logement-app/core/auth"
)

func (r *runner) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, outcome, err := r.open(cmd.Context(), home)
			if err != nil {
				return err
			}
			defer a.Close()
			r.printf("Serveur:   %s (%s)\n", a.Config.Backend.URL, outcome)
			sess, ok := a.Auth.State().Current()
			if !ok {
				r.printf("Session:   non connecté\n")
				return nil
			}
			r.printf("Session:   %s <%s>\n", sess.DisplayName, sess.Email)
			r.printf("Rôle:      %s\n", sess.Role)
			r.printf("Accueil:   %s\n", a.Nav.Current())
			return nil
		},
	}
}

func (r *runner) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, outcome, err := r.open(cmd.Context(), func(c *config.AppConfig) string { return c.Auth.LoginView })
			if err != nil {
				return err
			}
			defer a.Close()
			if outcome == auth.StatusAuthenticated {
				sess, _ := a.Auth.State().Current()
				r.printf("Déjà connecté en tant que %s. Vue: %s\n", sess.DisplayName, a.Nav.Current())
				return nil
			}
			if (email == "" || password == "") && r.opts.Interactive() {
				if err := promptCredentials(&email, &password); err != nil {
					return err
				}
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return fmt.Errorf("--email et --password sont requis")
			}
			if _, err := a.Auth.Login(cmd.Context(), strings.TrimSpace(email), password); err != nil {
				return err
			}
			r.printf("Vue: %s\n", a.Nav.Current())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func (r *runner) registerCmd() *cobra.Command {
	var reg auth.Registration
	var role string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg.Role = auth.Role(strings.ToLower(strings.TrimSpace(role)))
			a, _, err := r.open(cmd.Context(), func(c *config.AppConfig) string { return c.Auth.RegisterView })
			if err != nil {
				return err
			}
			defer a.Close()
			if (reg.Username == "" || reg.Email == "" || reg.Password == "") && r.opts.Interactive() {
				if err := promptRegistration(&reg); err != nil {
					return err
				}
			}
			ok, err := a.Auth.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			if ok {
				r.printf("Compte créé. Connectez-vous avec: logement login --email %s\n", reg.Email)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.Username, "username", "", "display name (nom_utilisateur)")
	f.StringVar(&reg.Email, "email", "", "account email")
	f.StringVar(&reg.Password, "password", "", "account password")
	f.StringVar(&reg.Phone, "phone", "", "phone number")
	f.StringVar(&reg.NationalID, "cni", "", "national id card number")
	f.StringVar(&role, "role", string(auth.RoleTenant), "locataire or proprietaire")
	return cmd
}

func (r *runner) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := r.open(cmd.Context(), home)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := a.Cookies.Clear(cmd.Context()); err != nil {
				a.Logger.Warnf("clear cookie store: %v", err)
			}
			return nil
		},
	}
}
