package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/rental"
)

const (
	searchView          = "/rooms"
	tenantContractsView = "/lodger/contracts"
	ownerHousesView     = "/owner/dashboard/houses"
	ownerClientsView    = "/owner/dashboard/clients"
	ownerContractsView  = "/owner/dashboard/contracts"
)

func yesNo(b bool) string {
	if b {
		return "oui"
	}
	return "non"
}

func roomRows(rooms []rental.Room) [][]string {
	rows := make([][]string, 0, len(rooms))
	for _, c := range rooms {
		rows = append(rows, []string{
			itoa(c.ID), c.Titre, c.City(), c.Type, c.Prix.String(), yesNo(c.Meublee), yesNo(c.Disponible),
		})
	}
	return rows
}

var roomHeaders = []string{"ID", "Titre", "Ville", "Type", "Prix", "Meublée", "Disponible"}

// public opens the app without requiring a session and enters view.
func (r *runner) public(cmd *cobra.Command, view string, fn func(ctx context.Context, a *App) error) error {
	ctx := cmd.Context()
	a, _, err := r.open(ctx, home)
	if err != nil {
		return err
	}
	defer a.Close()
	if d := a.Guard.Enter(view); !d.Allowed() {
		return fmt.Errorf("%s: accès refusé", view)
	}
	return fn(ctx, a)
}

func (r *runner) roomSearchCmd() *cobra.Command {
	var f rental.SearchFilter
	var meublee bool
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search rooms open for rent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("meublee") {
				f.Meublee = &meublee
			}
			if err := f.Validate(); err != nil {
				return err
			}
			return r.public(cmd, searchView, func(ctx context.Context, a *App) error {
				rooms, err := a.Rental.SearchRooms(ctx, f)
				if err != nil {
					return err
				}
				renderTable(r.opts.Out, roomHeaders, roomRows(rooms))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Ville, "ville", "", "city (partial match)")
	cmd.Flags().StringVar(&f.Type, "type", "", "room type (simple, appartement, maison)")
	cmd.Flags().Float64Var(&f.MinPrix, "min-prix", 0, "minimum monthly rent")
	cmd.Flags().Float64Var(&f.MaxPrix, "max-prix", 0, "maximum monthly rent")
	cmd.Flags().BoolVar(&meublee, "meublee", false, "furnished rooms only (--meublee=false for unfurnished)")
	cmd.Flags().BoolVar(&f.Occupied, "occupees", false, "list occupied rooms instead")
	return cmd
}

func (r *runner) roomShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <chambre-id>",
		Short: "Show a room open for rent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return r.public(cmd, searchView, func(ctx context.Context, a *App) error {
				c, err := a.Rental.AvailableRoom(ctx, id)
				if err != nil {
					return err
				}
				r.printf("%s (%d)\n", c.Titre, c.ID)
				r.printf("Adresse: %s, %s\n", c.AdresseMaison, c.City())
				r.printf("Type: %s   Taille: %s   Meublée: %s   Salle de bain: %s\n", c.Type, c.Taille, yesNo(c.Meublee), yesNo(c.SalleDeBain))
				r.printf("Loyer: %s\n", c.Prix)
				if c.Description != "" {
					r.printf("%s\n", c.Description)
				}
				for _, m := range c.Medias {
					r.printf("%d\t%s\n", m.ID, m.URL)
				}
				return nil
			})
		},
	}
}

func (r *runner) roomListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your rooms with their running contracts (owner)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, ownerRoomsView, func(ctx context.Context, a *App, _ auth.Session) error {
				rooms, err := a.Rental.OwnerRooms(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(rooms))
				for _, c := range rooms {
					tenant := "-"
					if len(c.ContratsActifs) > 0 {
						tenant = c.ContratsActifs[0].LocataireNom
					}
					rows = append(rows, []string{itoa(c.ID), c.Titre, c.City(), c.Prix.String(), yesNo(c.Disponible), tenant, itoa(int64(len(c.Medias)))})
				}
				renderTable(r.opts.Out, []string{"ID", "Titre", "Ville", "Prix", "Disponible", "Locataire", "Photos"}, rows)
				return nil
			})
		},
	}
}

func (r *runner) housesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "houses",
		Short: "List your houses (owner)",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List your houses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, ownerHousesView, func(ctx context.Context, a *App, _ auth.Session) error {
				houses, err := a.Rental.OwnerHouses(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(houses))
				for _, h := range houses {
					rows = append(rows, []string{itoa(h.ID), h.Adresse, h.Ville, fmt.Sprintf("%d", h.NombreChambres)})
				}
				renderTable(r.opts.Out, []string{"ID", "Adresse", "Ville", "Chambres"}, rows)
				return nil
			})
		},
	}
	show := &cobra.Command{
		Use:   "show <maison-id>",
		Short: "Show a house and its rooms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return r.withSession(cmd, ownerHousesView, func(ctx context.Context, a *App, _ auth.Session) error {
				h, err := a.Rental.House(ctx, id)
				if err != nil {
					return err
				}
				r.printf("%s, %s (%d)\n", h.Adresse, h.Ville, h.ID)
				if h.Description != "" {
					r.printf("%s\n", h.Description)
				}
				rooms, err := a.Rental.HouseRooms(ctx, id)
				if err != nil {
					return err
				}
				renderTable(r.opts.Out, roomHeaders, roomRows(rooms))
				return nil
			})
		},
	}
	cmd.AddCommand(list, show)
	return cmd
}

func (r *runner) clientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clients",
		Short: "List the tenants of your rooms (owner)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, ownerClientsView, func(ctx context.Context, a *App, _ auth.Session) error {
				clients, err := a.Rental.OwnerClients(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(clients))
				for _, c := range clients {
					rows = append(rows, []string{itoa(c.ID), c.Nom, c.Email, deref(c.Telephone), deref(c.CNI)})
				}
				renderTable(r.opts.Out, []string{"ID", "Nom", "Email", "Téléphone", "CNI"}, rows)
				return nil
			})
		},
	}
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func (r *runner) contractsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contracts",
		Short: "List contracts (tenant: your requests, owner: all rooms)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, "", func(ctx context.Context, a *App, s auth.Session) error {
				switch {
				case s.IsTenant():
					if d := a.Guard.Enter(tenantContractsView); !d.Allowed() {
						return fmt.Errorf("%s: accès refusé", tenantContractsView)
					}
					list, err := a.Rental.ListTenantContracts(ctx)
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(list))
					for _, c := range list {
						rows = append(rows, []string{itoa(c.ID), c.ChambreTitre, c.ProprietaireNom, c.DateDebut, c.DateFin, c.MontantCaution.String(), string(c.Statut)})
					}
					renderTable(r.opts.Out, []string{"Contrat", "Chambre", "Propriétaire", "Début", "Fin", "Caution", "Statut"}, rows)
					return nil
				case s.IsOwner():
					if d := a.Guard.Enter(ownerContractsView); !d.Allowed() {
						return fmt.Errorf("%s: accès refusé", ownerContractsView)
					}
					list, err := a.Rental.OwnerContracts(ctx)
					if err != nil {
						return err
					}
					rows := make([][]string, 0, len(list))
					for _, c := range list {
						rows = append(rows, []string{itoa(c.ID), c.ChambreTitre, c.ChambreAdresse, c.LocataireNom, c.DateDebut, c.DateFin, c.PrixMensuel.String(), string(c.Statut)})
					}
					renderTable(r.opts.Out, []string{"Contrat", "Chambre", "Adresse", "Locataire", "Début", "Fin", "Loyer", "Statut"}, rows)
					return nil
				}
				return fmt.Errorf("aucune liste de contrats pour le rôle %s", s.Role)
			})
		},
	}
}
