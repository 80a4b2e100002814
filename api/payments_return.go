package api

import (
	"context"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/satanpticoeur/social-logement-app/core/payments"
)

const reconcileOnReturnTimeout = 5 * time.Second

var returnPage = template.Must(template.New("return").Parse(`<!doctype html>
<html lang="fr"><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{font-family:sans-serif;max-width:32rem;margin:4rem auto;text-align:center}</style></head>
<body><h1>{{.Title}}</h1><p>{{.Message}}</p></body></html>
`))

type returnView struct {
	PaiementID int64  `json:"paiement_id"`
	Status     string `json:"status"`
	Title      string `json:"-"`
	Message    string `json:"message"`
}

// paymentReturn receives the browser back from the gateway. The query is
// only a hint; the payment is checked against the backend.
func (s *Server) paymentReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(strings.TrimSpace(q.Get("paiement_id")), 10, 64)
	if err != nil || id <= 0 {
		s.renderReturn(w, r, http.StatusBadRequest, returnView{
			Status:  "invalid",
			Title:   "Lien invalide",
			Message: "Identifiant de paiement manquant ou invalide.",
		})
		return
	}
	s.tracker.Report(id, strings.TrimSpace(q.Get("transaction_id")), strings.TrimSpace(q.Get("status")))
	s.logger.With("paiement_id", id, "gateway_status", q.Get("status")).Printf("gateway return")

	res := payments.Unresolved
	if s.reconciler != nil {
		ctx, cancel := context.WithTimeout(r.Context(), reconcileOnReturnTimeout)
		res, err = s.reconciler.Reconcile(ctx, id)
		cancel()
		if err != nil {
			s.logger.Warnf("payment %d reconcile on return: %v", id, err)
		}
	}
	v := returnView{PaiementID: id, Status: res.String()}
	switch res {
	case payments.Confirmed:
		v.Title, v.Message = "Paiement confirmé", "Votre paiement a été enregistré. Vous pouvez fermer cette page."
	case payments.Failed:
		v.Title, v.Message = "Paiement échoué", "Le paiement n'a pas abouti. Vous pouvez réessayer depuis l'application."
	case payments.Expired:
		v.Title, v.Message = "Paiement introuvable", "Ce paiement n'est plus suivi."
	default:
		v.Title, v.Message = "Paiement en cours de vérification", "Nous attendons la confirmation du serveur. Vous serez notifié."
	}
	s.renderReturn(w, r, http.StatusOK, v)
}

func (s *Server) renderReturn(w http.ResponseWriter, r *http.Request, code int, v returnView) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSONPlain(w, code, v)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := returnPage.Execute(w, v); err != nil {
		s.logger.Errorf("render return page: %v", err)
	}
}
