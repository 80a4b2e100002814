package payments

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Pending is a checkout waiting for backend confirmation.
type Pending struct {
	PaiementID    int64
	TransactionID string
	// GatewayStatus is what the gateway claimed on redirect. Advisory only.
	GatewayStatus string
	Attempts      int
	StartedAt     time.Time
}

func (p Pending) gatewayFailed() bool {
	switch strings.ToLower(strings.TrimSpace(p.GatewayStatus)) {
	case "failed", "failure", "error", "cancelled", "canceled", "echec", "échec", "annule", "annulé":
		return true
	}
	return false
}

// Tracker is the set of pending checkouts. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	pending map[int64]*Pending
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{pending: map[int64]*Pending{}, now: time.Now}
}

// Track starts following a payment. Tracking an already followed payment
// refreshes its transaction id.
func (t *Tracker) Track(paiementID int64, transactionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.pending[paiementID]; ok {
		if transactionID != "" {
			p.TransactionID = transactionID
		}
		return
	}
	t.pending[paiementID] = &Pending{PaiementID: paiementID, TransactionID: transactionID, StartedAt: t.now()}
}

// Report records the gateway redirect. Unknown payments start being tracked,
// since the checkout may have been opened by another process.
func (t *Tracker) Report(paiementID int64, transactionID, gatewayStatus string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[paiementID]
	if !ok {
		p = &Pending{PaiementID: paiementID, StartedAt: t.now()}
		t.pending[paiementID] = p
	}
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	p.GatewayStatus = gatewayStatus
}

func (t *Tracker) Get(paiementID int64) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[paiementID]
	if !ok {
		return Pending{}, false
	}
	return *p, true
}

// List returns the pending payments ordered by id.
func (t *Tracker) List() []Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Pending, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaiementID < out[j].PaiementID })
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func (t *Tracker) attempt(paiementID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[paiementID]
	if !ok {
		return 0
	}
	p.Attempts++
	return p.Attempts
}

func (t *Tracker) remove(paiementID int64) {
	t.mu.Lock()
	delete(t.pending, paiementID)
	t.mu.Unlock()
}
