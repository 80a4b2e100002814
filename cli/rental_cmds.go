package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/notify"
	"github.com/satanpticoeur/social-logement-app/core/payments"
	"github.com/satanpticoeur/social-logement-app/core/rental"
)

const (
	tenantPaymentsView = "/lodger/payments"
	tenantRoomsView    = "/lodger/rooms"
	ownerPaymentsView  = "/owner/dashboard/payments"
	ownerRoomsView     = "/owner/dashboard/rooms"
	ownerRequestsView  = "/owner/dashboard/requests"
)

func (r *runner) openCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Navigate to a view through the route guard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, outcome, err := r.open(cmd.Context(), home)
			if err != nil {
				return err
			}
			defer a.Close()
			if outcome == auth.StatusUnavailable {
				a.Logger.Warnf("backend unavailable, session treated as anonymous")
			}
			d := a.Guard.Enter(args[0])
			r.printf("Vue: %s\n", a.Nav.Current())
			if !d.Allowed() {
				return fmt.Errorf("%s: accès refusé", args[0])
			}
			return nil
		},
	}
}

func (r *runner) paymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "List and manage rent payments",
	}
	var contratID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List payments (tenant: own contracts, owner: all rooms)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, "", func(ctx context.Context, a *App, s auth.Session) error {
				switch {
				case s.IsTenant():
					return r.tenantPayments(ctx, a, contratID)
				case s.IsOwner():
					return r.ownerPayments(ctx, a, contratID)
				}
				return fmt.Errorf("aucune liste de paiements pour le rôle %s", s.Role)
			})
		},
	}
	list.Flags().Int64Var(&contratID, "contrat", 0, "only this contract")

	show := &cobra.Command{
		Use:   "show <paiement-id>",
		Short: "Show one payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return r.withSession(cmd, "", func(ctx context.Context, a *App, _ auth.Session) error {
				p, err := a.Rental.Payment(ctx, id)
				if err != nil {
					return err
				}
				renderTable(r.opts.Out, paymentHeaders, paymentRows([]rental.Payment{p}))
				return nil
			})
		},
	}

	markPaid := &cobra.Command{
		Use:   "mark-paid <paiement-id>",
		Short: "Record a payment as received (owner)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return r.withSession(cmd, ownerPaymentsView, func(ctx context.Context, a *App, _ auth.Session) error {
				msg, err := a.Rental.MarkPaid(ctx, id)
				if err != nil {
					notify.Error(a.Notifier, "Erreur", err.Error())
					return err
				}
				notify.Success(a.Notifier, "Paiement enregistré", msg)
				return nil
			})
		},
	}
	cmd.AddCommand(list, show, markPaid)
	return cmd
}

func (r *runner) tenantPayments(ctx context.Context, a *App, contratID int64) error {
	if d := a.Guard.Enter(tenantPaymentsView); !d.Allowed() {
		return fmt.Errorf("%s: accès refusé", tenantPaymentsView)
	}
	contracts, err := a.Rental.ListTenantContracts(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, []string{itoa(c.ID), c.ChambreTitre, c.ProprietaireNom, c.DateDebut, c.DateFin, string(c.Statut)})
	}
	renderTable(r.opts.Out, []string{"Contrat", "Chambre", "Propriétaire", "Début", "Fin", "Statut"}, rows)
	for _, c := range contracts {
		if (contratID != 0 && c.ID != contratID) || c.Statut != rental.ContractActive {
			continue
		}
		ps, err := a.Rental.ContractPayments(ctx, c.ID)
		if err != nil {
			return err
		}
		r.printf("\nPaiements du contrat %d (%s)\n", c.ID, c.ChambreTitre)
		renderTable(r.opts.Out, paymentHeaders, paymentRows(ps))
	}
	return nil
}

func (r *runner) ownerPayments(ctx context.Context, a *App, contratID int64) error {
	if d := a.Guard.Enter(ownerPaymentsView); !d.Allowed() {
		return fmt.Errorf("%s: accès refusé", ownerPaymentsView)
	}
	if contratID != 0 {
		ps, err := a.Rental.OwnerContractPayments(ctx, contratID)
		if err != nil {
			return err
		}
		renderTable(r.opts.Out, paymentHeaders, paymentRows(ps))
		return nil
	}
	dash, err := a.Rental.OwnerPayments(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(dash.Paiements))
	for _, p := range dash.Paiements {
		rows = append(rows, []string{itoa(p.ID), p.ChambreTitre, p.LocataireNom, p.DateEcheance, p.Montant.String(), string(p.Statut)})
	}
	renderTable(r.opts.Out, []string{"ID", "Chambre", "Locataire", "Échéance", "Montant", "Statut"}, rows)
	sum := dash.Summary
	r.printf("Payé: %s (%d)   Impayé: %s (%d)   Partiel: %d\n",
		sum.TotalPaye, sum.NbPayes, sum.TotalImpaye, sum.NbImpayes, sum.NbPartiels)
	return nil
}

func (r *runner) payCmd() *cobra.Command {
	var pngPath string
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "pay <paiement-id>",
		Short: "Pay a rent installment by mobile money",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return r.withSession(cmd, tenantPaymentsView, func(ctx context.Context, a *App, _ auth.Session) error {
				co, err := a.Payments.StartCheckout(ctx, id)
				if err != nil {
					notify.Error(a.Notifier, "Paiement impossible", err.Error())
					return err
				}
				r.printf("Scannez ce code ou ouvrez le lien pour payer (transaction %s):\n", co.TransactionID)
				if err := payments.RenderQR(r.opts.Out, co.CheckoutURL); err != nil {
					return err
				}
				if pngPath != "" {
					if err := payments.WriteQRPNG(pngPath, co.CheckoutURL, 0); err != nil {
						return err
					}
					r.printf("QR code enregistré: %s\n", pngPath)
				}
				if wait <= 0 {
					r.printf("Le paiement sera confirmé par l'agent (logement agent).\n")
					return nil
				}
				wctx, cancel := context.WithTimeout(ctx, wait)
				defer cancel()
				res, err := a.Reconciler.Await(wctx, id, 3*time.Second)
				if res == payments.Unresolved {
					notify.Warning(a.Notifier, "Paiement en attente", "Aucune confirmation reçue pour le moment.")
					return nil
				}
				if res == payments.Confirmed {
					return nil
				}
				if err != nil {
					return err
				}
				return fmt.Errorf("paiement %d: %s", id, res)
			})
		},
	}
	cmd.Flags().StringVar(&pngPath, "png", "", "also save the QR code as a PNG file")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait this long for the backend to confirm the payment")
	return cmd
}

func (r *runner) roomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Search, rent and manage rooms",
	}
	var debut string
	var duree int
	rent := &cobra.Command{
		Use:   "rent <chambre-id>",
		Short: "Send a rental request (tenant)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			req := rental.RentalRequest{DateDebut: debut, DureeMois: duree}
			if err := req.Validate(); err != nil {
				return err
			}
			return r.withSession(cmd, tenantRoomsView, func(ctx context.Context, a *App, _ auth.Session) error {
				res, err := a.Rental.RequestRental(ctx, id, req)
				if err != nil {
					notify.Error(a.Notifier, "Demande refusée", err.Error())
					return err
				}
				notify.Success(a.Notifier, "Demande envoyée", res.Message)
				return nil
			})
		},
	}
	rent.Flags().StringVar(&debut, "debut", "", "start date (YYYY-MM-DD)")
	rent.Flags().IntVar(&duree, "duree", 0, "duration in months")

	upload := &cobra.Command{
		Use:   "upload-media <chambre-id> <file>...",
		Short: "Upload room photos (owner)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var files []rental.MediaFile
			for _, p := range args[1:] {
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				defer f.Close()
				files = append(files, rental.MediaFile{
					Filename:    filepath.Base(p),
					ContentType: mime.TypeByExtension(filepath.Ext(p)),
					Content:     f,
				})
			}
			return r.withSession(cmd, ownerRoomsView, func(ctx context.Context, a *App, _ auth.Session) error {
				res, err := a.Rental.UploadRoomMedia(ctx, id, files)
				if err != nil {
					notify.Error(a.Notifier, "Échec du téléversement", err.Error())
					return err
				}
				notify.Success(a.Notifier, "Médias téléversés", res.Message)
				for _, e := range res.Errors {
					notify.Warning(a.Notifier, "Fichier ignoré", e)
				}
				for _, m := range res.URLs {
					r.printf("%d\t%s\n", m.ID, m.URL)
				}
				return nil
			})
		},
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete-media <media-id>",
		Short: "Delete a room photo (owner)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes && r.opts.Interactive() {
				ok, err := promptConfirm(fmt.Sprintf("Supprimer le média %d ?", id))
				if err != nil || !ok {
					return err
				}
			}
			return r.withSession(cmd, ownerRoomsView, func(ctx context.Context, a *App, _ auth.Session) error {
				if err := a.Rental.DeleteMedia(ctx, id); err != nil {
					notify.Error(a.Notifier, "Suppression impossible", err.Error())
					return err
				}
				notify.Success(a.Notifier, "Média supprimé", fmt.Sprintf("Le média %d a été supprimé.", id))
				return nil
			})
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	cmd.AddCommand(r.roomSearchCmd(), r.roomShowCmd(), r.roomListCmd(), rent, upload, del)
	return cmd
}

func (r *runner) requestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Review pending rental requests (owner)",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List pending rental requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, ownerRequestsView, func(ctx context.Context, a *App, _ auth.Session) error {
				reqs, err := a.Rental.PendingRentalRequests(ctx)
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(reqs))
				for _, q := range reqs {
					rows = append(rows, []string{itoa(q.ID), q.LocataireNom, q.ChambreTitre, q.DateDebut, fmt.Sprintf("%d mois", q.DureeMois), q.MontantCaution.String()})
				}
				renderTable(r.opts.Out, []string{"Contrat", "Locataire", "Chambre", "Début", "Durée", "Caution"}, rows)
				return nil
			})
		},
	}
	decide := func(use, short string, d rental.Decision) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <contrat-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return r.withSession(cmd, ownerRequestsView, func(ctx context.Context, a *App, _ auth.Session) error {
					msg, err := a.Rental.DecideRentalRequest(ctx, id, d)
					if err != nil {
						notify.Error(a.Notifier, "Erreur", err.Error())
						return err
					}
					notify.Success(a.Notifier, "Demande traitée", msg)
					return nil
				})
			},
		}
	}
	cmd.AddCommand(list,
		decide("approve", "Approve a rental request", rental.Approve),
		decide("reject", "Reject a rental request", rental.Reject),
	)
	return cmd
}
