package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

type House struct {
	ID          int64
	OwnerID     int64
	Adresse     string
	Ville       string
	Description string
	CreeLe      string
}

// Room is a rentable room. A room added with a MaisonID inherits the
// house owner.
type Room struct {
	ID          int64
	MaisonID    int64
	OwnerID     int64
	Titre       string
	Description string
	Taille      string
	Type        string
	Meublee     bool
	SalleDeBain bool
	Prix        float64
	Unavailable bool
	CreeLe      string
}

type Contract struct {
	ID             int64
	ChambreID      int64
	LocataireID    int64
	DateDebut      string
	DateFin        string
	MontantCaution float64
	DureeMois      int
	Statut         string
}

type Payment struct {
	ID           int64
	ContratID    int64
	Montant      float64
	DateEcheance string
	DatePaiement string
	Statut       string
	Description  string
	CreeLe       string
}

type Media struct {
	ID        int64
	ChambreID int64
	URL       string
}

var allowedMediaExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

func (b *Backend) AddHouse(h House) House {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	h.ID = b.nextID
	if h.CreeLe == "" {
		h.CreeLe = time.Now().UTC().Format(time.RFC3339)
	}
	cp := h
	b.houses[h.ID] = &cp
	return h
}

func (b *Backend) AddRoom(r Room) Room {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	r.ID = b.nextID
	if h, ok := b.houses[r.MaisonID]; ok && r.OwnerID == 0 {
		r.OwnerID = h.OwnerID
	}
	if r.CreeLe == "" {
		r.CreeLe = time.Now().UTC().Format(time.RFC3339)
	}
	cp := r
	b.rooms[r.ID] = &cp
	return r
}

func (b *Backend) AddContract(c Contract) Contract {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	c.ID = b.nextID
	if c.Statut == "" {
		c.Statut = "en_attente_validation"
	}
	cp := c
	b.contracts[c.ID] = &cp
	return c
}

func (b *Backend) AddPayment(p Payment) Payment {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	p.ID = b.nextID
	if p.Statut == "" {
		p.Statut = "impayé"
	}
	if p.CreeLe == "" {
		p.CreeLe = time.Now().UTC().Format(time.RFC3339)
	}
	cp := p
	b.payments[p.ID] = &cp
	return p
}

func (b *Backend) AddMedia(m Media) Media {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	m.ID = b.nextID
	cp := m
	b.media[m.ID] = &cp
	return m
}

func (b *Backend) PaymentStatus(id int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.payments[id]; ok {
		return p.Statut
	}
	return ""
}

func (b *Backend) SetPaymentStatus(id int64, statut string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.payments[id]; ok {
		p.Statut = statut
		if statut == "payé" {
			p.DatePaiement = time.Now().UTC().Format(time.RFC3339)
		}
	}
}

func (b *Backend) ContractStatus(id int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.contracts[id]; ok {
		return c.Statut
	}
	return ""
}

// Media returns the media attached to a room.
func (b *Backend) Media(chambreID int64) []Media {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Media
	for _, m := range b.media {
		if m.ChambreID == chambreID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CompleteCheckout settles a gateway transaction. It reports the payment id.
func (b *Backend) CompleteCheckout(transactionID string, success bool) (int64, bool) {
	b.mu.Lock()
	id, ok := b.checkouts[transactionID]
	b.mu.Unlock()
	if ok && success {
		b.SetPaymentStatus(id, "payé")
	}
	return id, ok
}

func (b *Backend) ownerOf(c *Contract) int64 {
	if r, ok := b.rooms[c.ChambreID]; ok {
		return r.OwnerID
	}
	return 0
}

func (b *Backend) userName(id int64) string {
	if u, ok := b.users[id]; ok {
		return u.Name
	}
	return "N/A"
}

func (b *Backend) roomTitle(id int64) string {
	if r, ok := b.rooms[id]; ok {
		return r.Titre
	}
	return ""
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func requireRole(w http.ResponseWriter, r *http.Request, role, msg string) (*User, bool) {
	u := userFrom(r.Context())
	if u == nil || u.Role != role {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": msg})
		return nil, false
	}
	return u, true
}

func message(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func paymentView(p *Payment) map[string]any {
	return map[string]any{
		"id":            p.ID,
		"montant":       p.Montant,
		"date_echeance": p.DateEcheance,
		"date_paiement": nullable(p.DatePaiement),
		"statut":        p.Statut,
		"description":   nullable(p.Description),
		"cree_le":       p.CreeLe,
	}
}

func (b *Backend) paymentsOf(contratID int64, desc bool) []*Payment {
	var out []*Payment
	for _, p := range b.payments {
		if p.ContratID == contratID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].DateEcheance > out[j].DateEcheance
		}
		return out[i].DateEcheance < out[j].DateEcheance
	})
	return out
}

func (b *Backend) tenantContracts(w http.ResponseWriter, r *http.Request) {
	u, ok := requireRole(w, r, "locataire", "Accès refusé. Seuls les locataires peuvent voir leurs demandes.")
	if !ok {
		return
	}
	b.mu.Lock()
	var list []*Contract
	for _, c := range b.contracts {
		if c.LocataireID == u.ID {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DateDebut > list[j].DateDebut })
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		out = append(out, map[string]any{
			"id":               c.ID,
			"chambre_id":       c.ChambreID,
			"chambre_titre":    b.roomTitle(c.ChambreID),
			"proprietaire_nom": b.userName(b.ownerOf(c)),
			"date_debut":       c.DateDebut,
			"date_fin":         c.DateFin,
			"montant_caution":  c.MontantCaution,
			"duree_mois":       c.DureeMois,
			"statut":           c.Statut,
		})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) tenantContractPayments(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.contracts[id]
	if !ok || c.LocataireID != u.ID {
		message(w, http.StatusNotFound, "Contrat non trouvé ou non autorisé.")
		return
	}
	out := []map[string]any{}
	for _, p := range b.paymentsOf(id, false) {
		out = append(out, paymentView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) requestRental(w http.ResponseWriter, r *http.Request) {
	u, ok := requireRole(w, r, "locataire", "Accès refusé. Seuls les locataires peuvent soumettre des demandes.")
	if !ok {
		return
	}
	id, _ := pathID(r)
	b.mu.Lock()
	room, found := b.rooms[id]
	busy := false
	for _, c := range b.contracts {
		if c.ChambreID == id && (c.Statut == "actif" || c.Statut == "en_attente_validation") {
			busy = true
		}
	}
	b.mu.Unlock()
	if !found {
		message(w, http.StatusNotFound, "Chambre non trouvée.")
		return
	}
	if busy {
		message(w, http.StatusBadRequest, "Cette chambre a déjà une demande de location en attente ou un contrat actif.")
		return
	}
	var req struct {
		DateDebut string `json:"date_debut"`
		DureeMois int    `json:"duree_mois"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		message(w, http.StatusBadRequest, "Données de requête manquantes.")
		return
	}
	if req.DateDebut == "" || req.DureeMois <= 0 {
		message(w, http.StatusBadRequest, "Les champs 'date_debut' et 'duree_mois' sont requis.")
		return
	}
	start, err := time.Parse(dateLayout, req.DateDebut)
	if err != nil {
		message(w, http.StatusBadRequest, "Format de date invalide. Utilisez YYYY-MM-DD.")
		return
	}
	if start.Before(time.Now().UTC().Truncate(24 * time.Hour)) {
		message(w, http.StatusBadRequest, "La date de début ne peut pas être dans le passé.")
		return
	}
	c := b.AddContract(Contract{
		ChambreID:      room.ID,
		LocataireID:    u.ID,
		DateDebut:      req.DateDebut,
		DateFin:        start.AddDate(0, req.DureeMois, 0).Format(dateLayout),
		MontantCaution: room.Prix,
		DureeMois:      req.DureeMois,
		Statut:         "en_attente_validation",
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    fmt.Sprintf("Demande de location soumise avec succès. Montant de la caution estimé: %v FCFA. En attente de validation par le propriétaire.", room.Prix),
		"contrat_id": c.ID,
	})
}

func (b *Backend) ownerPayments(w http.ResponseWriter, r *http.Request) {
	u, ok := requireRole(w, r, "proprietaire", "Accès refusé.")
	if !ok {
		return
	}
	b.mu.Lock()
	var list []*Payment
	for _, p := range b.payments {
		if c, ok := b.contracts[p.ContratID]; ok && b.ownerOf(c) == u.ID {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].DateEcheance > list[j].DateEcheance })
	rows := make([]map[string]any, 0, len(list))
	var totalPaid, totalUnpaid float64
	var nPaid, nUnpaid, nPartial int
	for _, p := range list {
		c := b.contracts[p.ContratID]
		rows = append(rows, map[string]any{
			"id":                        p.ID,
			"montant":                   p.Montant,
			"date_echeance":             p.DateEcheance,
			"date_paiement":             nullable(p.DatePaiement),
			"statut":                    p.Statut,
			"contrat_id":                p.ContratID,
			"chambre_titre":             b.roomTitle(c.ChambreID),
			"locataire_nom_utilisateur": b.userName(c.LocataireID),
		})
		switch p.Statut {
		case "payé":
			totalPaid += p.Montant
			nPaid++
		case "impayé":
			totalUnpaid += p.Montant
			nUnpaid++
		case "partiel":
			nPartial++
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"paiements": rows,
		"dashboard_summary": map[string]any{
			"total_paye":                totalPaid,
			"total_impaye":              totalUnpaid,
			"nombre_paiements_payes":    nPaid,
			"nombre_paiements_impayes":  nUnpaid,
			"nombre_paiements_partiels": nPartial,
		},
	})
}

func (b *Backend) ownerContractPayments(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.contracts[id]
	if !ok {
		message(w, http.StatusNotFound, "Contrat non trouvé.")
		return
	}
	if b.ownerOf(c) != u.ID {
		message(w, http.StatusForbidden, "Non autorisé à voir les paiements de ce contrat.")
		return
	}
	out := []map[string]any{}
	for _, p := range b.paymentsOf(id, false) {
		out = append(out, paymentView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) markPaid(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	id, _ := pathID(r)
	b.mu.Lock()
	p, ok := b.payments[id]
	if !ok {
		b.mu.Unlock()
		message(w, http.StatusNotFound, "Paiement non trouvé.")
		return
	}
	c := b.contracts[p.ContratID]
	if c == nil || b.ownerOf(c) != u.ID {
		b.mu.Unlock()
		message(w, http.StatusForbidden, "Non autorisé à modifier ce paiement.")
		return
	}
	if p.Statut == "payé" {
		b.mu.Unlock()
		message(w, http.StatusBadRequest, "Ce paiement est déjà marqué comme payé.")
		return
	}
	p.Statut = "payé"
	p.DatePaiement = time.Now().UTC().Format(time.RFC3339)
	b.mu.Unlock()
	message(w, http.StatusOK, "Paiement marqué comme payé avec succès!")
}

func (b *Backend) pendingRequests(w http.ResponseWriter, r *http.Request) {
	u, ok := requireRole(w, r, "proprietaire", "Accès refusé.")
	if !ok {
		return
	}
	b.mu.Lock()
	var list []*Contract
	for _, c := range b.contracts {
		if c.Statut == "en_attente_validation" && b.ownerOf(c) == u.ID {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		out = append(out, map[string]any{
			"id":              c.ID,
			"locataire_id":    c.LocataireID,
			"locataire_nom":   b.userName(c.LocataireID),
			"chambre_id":      c.ChambreID,
			"chambre_titre":   b.roomTitle(c.ChambreID),
			"date_debut":      c.DateDebut,
			"date_fin":        c.DateFin,
			"montant_caution": c.MontantCaution,
			"duree_mois":      c.DureeMois,
			"statut":          c.Statut,
		})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) decideRequest(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	id, _ := pathID(r)
	action := chi.URLParam(r, "action")
	if action != "approuver" && action != "rejeter" {
		message(w, http.StatusBadRequest, "Action inconnue.")
		return
	}
	b.mu.Lock()
	c, ok := b.contracts[id]
	if !ok {
		b.mu.Unlock()
		message(w, http.StatusNotFound, "Contrat non trouvé.")
		return
	}
	if b.ownerOf(c) != u.ID {
		b.mu.Unlock()
		message(w, http.StatusForbidden, "Non autorisé à modifier ce contrat.")
		return
	}
	if c.Statut != "en_attente_validation" {
		b.mu.Unlock()
		message(w, http.StatusBadRequest, "Ce contrat n'est pas en attente de validation.")
		return
	}
	if action == "rejeter" {
		c.Statut = "rejete"
		b.mu.Unlock()
		message(w, http.StatusOK, "Demande de location rejetée.")
		return
	}
	c.Statut = "actif"
	var rent float64
	if room, ok := b.rooms[c.ChambreID]; ok {
		rent = room.Prix
	}
	start, _ := time.Parse(dateLayout, c.DateDebut)
	months, contratID := c.DureeMois, c.ID
	b.mu.Unlock()
	for i := 0; i < months; i++ {
		b.AddPayment(Payment{
			ContratID:    contratID,
			Montant:      rent,
			DateEcheance: start.AddDate(0, i, 0).Format(dateLayout),
			Description:  fmt.Sprintf("Loyer mois %d", i+1),
		})
	}
	message(w, http.StatusOK, "Demande de location approuvée.")
}

func (b *Backend) deleteMedia(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.media[id]
	if !ok {
		message(w, http.StatusNotFound, "Média non trouvé")
		return
	}
	if room, ok := b.rooms[m.ChambreID]; !ok || room.OwnerID != u.ID {
		message(w, http.StatusForbidden, "Vous n'êtes pas autorisé à supprimer ce média.")
		return
	}
	delete(b.media, id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) uploadMedia(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	id, _ := pathID(r)
	b.mu.Lock()
	room, ok := b.rooms[id]
	b.mu.Unlock()
	if !ok {
		message(w, http.StatusNotFound, "Chambre non trouvée")
		return
	}
	if room.OwnerID != u.ID {
		message(w, http.StatusForbidden, "Vous n'êtes pas autorisé à ajouter des médias à cette chambre.")
		return
	}
	if err := r.ParseMultipartForm(16 << 20); err != nil || r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		message(w, http.StatusBadRequest, "Aucun fichier fourni sous la clé 'files'")
		return
	}
	var uploaded []map[string]any
	var errs []string
	for _, fh := range r.MultipartForm.File["files"] {
		name := path.Base(fh.Filename)
		if !allowedMediaExt[strings.ToLower(path.Ext(name))] {
			errs = append(errs, fmt.Sprintf("Type de fichier non autorisé pour %s.", name))
			continue
		}
		m := b.AddMedia(Media{ChambreID: id, URL: fmt.Sprintf("/static/uploads/chambres/%d/%s", id, name)})
		uploaded = append(uploaded, map[string]any{"id": m.ID, "url": m.URL})
	}
	if len(errs) > 0 {
		status := http.StatusBadRequest
		if len(uploaded) > 0 {
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, map[string]any{
			"message":        "Certains fichiers n'ont pas pu être traités.",
			"uploaded_count": len(uploaded),
			"urls":           uploaded,
			"errors":         errs,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("%d médias téléversés avec succès.", len(uploaded)),
		"urls":    uploaded,
	})
}

func (b *Backend) startCheckout(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	id, _ := pathID(r)
	var req struct {
		ReturnURL string `json:"return_url"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	p, ok := b.payments[id]
	if !ok {
		b.mu.Unlock()
		message(w, http.StatusNotFound, "Paiement non trouvé.")
		return
	}
	c := b.contracts[p.ContratID]
	if c == nil || c.LocataireID != u.ID {
		b.mu.Unlock()
		message(w, http.StatusForbidden, "Non autorisé à régler ce paiement.")
		return
	}
	if p.Statut == "payé" {
		b.mu.Unlock()
		message(w, http.StatusBadRequest, "Ce paiement est déjà réglé.")
		return
	}
	if req.ReturnURL == "" {
		b.mu.Unlock()
		message(w, http.StatusBadRequest, "Le champ 'return_url' est requis.")
		return
	}
	tx := "TX-" + randomToken(9)
	b.checkouts[tx] = id
	b.mu.Unlock()
	q := url.Values{}
	q.Set("transaction_id", tx)
	q.Set("return_url", req.ReturnURL)
	writeJSON(w, http.StatusCreated, map[string]any{
		"checkout_url":   b.gatewayURL + "?" + q.Encode(),
		"transaction_id": tx,
	})
}

// payment mirrors the backend serializer, which renders montant as a string.
func (b *Backend) payment(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.payments[id]
	if !ok {
		message(w, http.StatusNotFound, "Paiement non trouvé.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":            p.ID,
		"contrat_id":    p.ContratID,
		"montant":       strconv.FormatFloat(p.Montant, 'f', 2, 64),
		"date_paiement": nullable(p.DatePaiement),
		"statut":        p.Statut,
		"cree_le":       p.CreeLe,
	})
}
