// Package payments drives the mobile-money checkout: it asks the backend for
// a gateway URL, follows the gateway redirect and reconciles the outcome
// against the backend.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/satanpticoeur/social-logement-app/core/apiclient"
	"github.com/satanpticoeur/social-logement-app/core/netguard"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

// ReturnPath is the agent route the gateway redirects to.
const ReturnPath = "/payments/return"

type Requester interface {
	DoInto(ctx context.Context, endpoint string, opts apiclient.Options, out any) error
}

type Checkout struct {
	PaiementID    int64  `json:"-"`
	CheckoutURL   string `json:"checkout_url"`
	TransactionID string `json:"transaction_id"`
	ReturnURL     string `json:"-"`
}

type Service struct {
	client    Requester
	tracker   *Tracker
	publicURL string
	policy    netguard.Policy
	logger    *utils.Logger
}

// NewService builds the checkout service. publicURL is the agent's base URL
// as reachable from the user's browser.
func NewService(client Requester, tracker *Tracker, publicURL string, logger *utils.Logger) *Service {
	if tracker == nil {
		tracker = NewTracker()
	}
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Service{client: client, tracker: tracker, publicURL: strings.TrimRight(publicURL, "/"), logger: logger}
}

func (s *Service) Tracker() *Tracker { return s.tracker }

// SetURLPolicy relaxes the checks applied to gateway URLs. The default only
// accepts https URLs on public hosts.
func (s *Service) SetURLPolicy(p netguard.Policy) { s.policy = p }

// ReturnURL is where the gateway sends the browser back for paiementID.
func (s *Service) ReturnURL(paiementID int64) string {
	q := url.Values{}
	q.Set("paiement_id", strconv.FormatInt(paiementID, 10))
	return s.publicURL + ReturnPath + "?" + q.Encode()
}

// StartCheckout opens a gateway session for the payment and starts tracking it.
func (s *Service) StartCheckout(ctx context.Context, paiementID int64) (Checkout, error) {
	if paiementID <= 0 {
		return Checkout{}, fmt.Errorf("invalid payment id %d", paiementID)
	}
	ret := s.ReturnURL(paiementID)
	var out Checkout
	err := s.client.DoInto(ctx, fmt.Sprintf("paiements/%d/mobile-money", paiementID),
		apiclient.Options{Method: http.MethodPost, Body: map[string]string{"return_url": ret}}, &out)
	if err != nil {
		return Checkout{}, err
	}
	if out.CheckoutURL == "" {
		return Checkout{}, &apiclient.MalformedResponseError{Err: errors.New("checkout_url missing")}
	}
	if err := netguard.ValidateURL(out.CheckoutURL, s.policy); err != nil {
		s.logger.Warnf("payment %d: gateway url rejected: %v", paiementID, err)
		return Checkout{}, fmt.Errorf("checkout url rejected: %w", err)
	}
	out.PaiementID = paiementID
	out.ReturnURL = ret
	s.tracker.Track(paiementID, out.TransactionID)
	s.logger.With("paiement_id", paiementID, "transaction_id", out.TransactionID).Printf("checkout started")
	return out, nil
}
