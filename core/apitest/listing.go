package apitest

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

func (b *Backend) mediaView(chambreID int64) []map[string]any {
	var ids []int64
	for id, m := range b.media {
		if m.ChambreID == chambreID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		m := b.media[id]
		out = append(out, map[string]any{
			"id":          m.ID,
			"chambre_id":  m.ChambreID,
			"url":         m.URL,
			"type":        "photo",
			"description": nil,
		})
	}
	return out
}

// listedRoom is the flat room shape of the search and owner listings.
func (b *Backend) listedRoom(r *Room) map[string]any {
	var adresse, ville any
	if h, ok := b.houses[r.MaisonID]; ok {
		adresse, ville = h.Adresse, h.Ville
	}
	return map[string]any{
		"id":             r.ID,
		"maison_id":      r.MaisonID,
		"adresse_maison": adresse,
		"ville_maison":   ville,
		"titre":          r.Titre,
		"description":    r.Description,
		"taille":         r.Taille,
		"type":           r.Type,
		"meublee":        r.Meublee,
		"salle_de_bain":  r.SalleDeBain,
		"prix":           r.Prix,
		"disponible":     !r.Unavailable,
		"medias":         b.mediaView(r.ID),
		"cree_le":        r.CreeLe,
	}
}

func (b *Backend) houseView(h *House) map[string]any {
	var owner any
	if u, ok := b.users[h.OwnerID]; ok {
		owner = map[string]any{
			"id":              u.ID,
			"nom_utilisateur": u.Name,
			"email":           u.Email,
			"role":            u.Role,
		}
	}
	return map[string]any{
		"id":              h.ID,
		"proprietaire_id": h.OwnerID,
		"adresse":         h.Adresse,
		"ville":           h.Ville,
		"description":     h.Description,
		"cree_le":         h.CreeLe,
		"proprietaire":    owner,
	}
}

// nestedRoom follows the generic room serializer: prix is a decimal string
// and the house is embedded.
func (b *Backend) nestedRoom(r *Room) map[string]any {
	var house any
	if h, ok := b.houses[r.MaisonID]; ok {
		house = b.houseView(h)
	}
	return map[string]any{
		"id":            r.ID,
		"maison_id":     r.MaisonID,
		"titre":         r.Titre,
		"description":   r.Description,
		"taille":        r.Taille,
		"type":          r.Type,
		"meublee":       r.Meublee,
		"salle_de_bain": r.SalleDeBain,
		"prix":          strconv.FormatFloat(r.Prix, 'f', 2, 64),
		"disponible":    !r.Unavailable,
		"cree_le":       r.CreeLe,
		"maison":        house,
		"medias":        b.mediaView(r.ID),
	}
}

func (b *Backend) sortedRooms(keep func(*Room) bool) []*Room {
	var out []*Room
	for _, r := range b.rooms {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) searchRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ville := strings.ToLower(q.Get("ville"))
	typ := strings.ToLower(q.Get("type"))
	minPrix, hasMin := queryFloat(q.Get("min_prix"))
	maxPrix, hasMax := queryFloat(q.Get("max_prix"))
	meublee := q.Get("meublee")
	disponible := true
	if v := q.Get("disponible"); v != "" {
		disponible = strings.EqualFold(v, "true")
	}

	b.mu.Lock()
	rooms := b.sortedRooms(func(room *Room) bool {
		h, ok := b.houses[room.MaisonID]
		if !ok {
			return false
		}
		switch {
		case ville != "" && !strings.Contains(strings.ToLower(h.Ville), ville):
			return false
		case hasMin && room.Prix < minPrix:
			return false
		case hasMax && room.Prix > maxPrix:
			return false
		case typ != "" && !strings.Contains(strings.ToLower(room.Type), typ):
			return false
		case meublee != "" && room.Meublee != strings.EqualFold(meublee, "true"):
			return false
		}
		return room.Unavailable != disponible
	})
	out := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, b.listedRoom(room))
	}
	b.mu.Unlock()
	if len(out) == 0 {
		message(w, http.StatusNotFound, "Aucune chambre trouvée avec ces critères.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func queryFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func (b *Backend) availableRoom(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.rooms[id]
	if !ok || room.Unavailable {
		message(w, http.StatusNotFound, "Chambre non trouvée ou non disponible.")
		return
	}
	writeJSON(w, http.StatusOK, b.listedRoom(room))
}

func (b *Backend) room(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAnyRole(w, r); !ok {
		return
	}
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.rooms[id]
	if !ok {
		message(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, b.nestedRoom(room))
}

func (b *Backend) house(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAnyRole(w, r); !ok {
		return
	}
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.houses[id]
	if !ok {
		message(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, b.houseView(h))
}

func (b *Backend) houseRooms(w http.ResponseWriter, r *http.Request) {
	u, ok := requireRole(w, r, "proprietaire", "Accès refusé.")
	if !ok {
		return
	}
	id, _ := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	h, found := b.houses[id]
	if !found {
		message(w, http.StatusNotFound, "Maison non trouvée.")
		return
	}
	if h.OwnerID != u.ID {
		message(w, http.StatusForbidden, "Non autorisé à voir les chambres de cette maison.")
		return
	}
	out := []map[string]any{}
	for _, room := range b.sortedRooms(func(room *Room) bool { return room.MaisonID == id }) {
		out = append(out, b.nestedRoom(room))
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) ownerHouses(w http.ResponseWriter, r *http.Request) {
	u, ok := requireRole(w, r, "proprietaire", "Accès refusé.")
	if !ok {
		return
	}
	b.mu.Lock()
	var list []*House
	for _, h := range b.houses {
		if h.OwnerID == u.ID {
			list = append(list, h)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	out := make([]map[string]any, 0, len(list))
	for _, h := range list {
		n := 0
		for _, room := range b.rooms {
			if room.MaisonID == h.ID {
				n++
			}
		}
		out = append(out, map[string]any{
			"id":              h.ID,
			"adresse":         h.Adresse,
			"ville":           h.Ville,
			"description":     h.Description,
			"nombre_chambres": n,
			"cree_le":         h.CreeLe,
		})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) ownerRooms(w http.ResponseWriter, r *http.Request) {
	u, ok := requireRole(w, r, "proprietaire", "Accès refusé.")
	if !ok {
		return
	}
	today := time.Now().UTC().Format(dateLayout)
	b.mu.Lock()
	rooms := b.sortedRooms(func(room *Room) bool { return room.OwnerID == u.ID })
	out := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		active := []map[string]any{}
		for _, c := range b.sortedContracts(func(c *Contract) bool {
			return c.ChambreID == room.ID && c.Statut == "actif" && c.DateFin >= today
		}) {
			active = append(active, map[string]any{
				"contrat_id":                c.ID,
				"locataire_nom_utilisateur": b.userName(c.LocataireID),
				"date_debut":                c.DateDebut,
				"date_fin":                  c.DateFin,
				"statut":                    c.Statut,
			})
		}
		view := b.listedRoom(room)
		view["contrats_actifs"] = active
		delete(view, "cree_le")
		out = append(out, view)
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) sortedContracts(keep func(*Contract) bool) []*Contract {
	var out []*Contract
	for _, c := range b.contracts {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) ownerClients(w http.ResponseWriter, r *http.Request) {
	u, ok := requireRole(w, r, "proprietaire", "Accès refusé.")
	if !ok {
		return
	}
	b.mu.Lock()
	seen := map[int64]bool{}
	var ids []int64
	for _, c := range b.contracts {
		t, found := b.users[c.LocataireID]
		if !found || t.Role != "locataire" || b.ownerOf(c) != u.ID || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		ids = append(ids, t.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		t := b.users[id]
		out = append(out, map[string]any{
			"id":              t.ID,
			"nom_utilisateur": t.Name,
			"email":           t.Email,
			"telephone":       nullable(t.Phone),
			"cni":             nullable(t.CNI),
		})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) ownerContracts(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	b.mu.Lock()
	list := b.sortedContracts(func(c *Contract) bool { return b.ownerOf(c) == u.ID })
	sort.SliceStable(list, func(i, j int) bool { return list[i].DateDebut > list[j].DateDebut })
	out := make([]map[string]any, 0, len(list))
	for _, c := range list {
		room := b.rooms[c.ChambreID]
		adresse := ""
		if h, ok := b.houses[room.MaisonID]; ok {
			adresse = fmt.Sprintf("%s, %s", h.Adresse, h.Ville)
		}
		var caution any
		if c.MontantCaution > 0 {
			caution = c.MontantCaution
		}
		var email string
		if t, ok := b.users[c.LocataireID]; ok {
			email = t.Email
		}
		out = append(out, map[string]any{
			"id":                        c.ID,
			"locataire_id":              c.LocataireID,
			"locataire_nom_utilisateur": b.userName(c.LocataireID),
			"locataire_email":           email,
			"chambre_id":                room.ID,
			"chambre_titre":             room.Titre,
			"chambre_adresse":           adresse,
			"prix_mensuel_chambre":      room.Prix,
			"date_debut":                c.DateDebut,
			"date_fin":                  c.DateFin,
			"montant_caution":           caution,
			"statut":                    c.Statut,
		})
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func requireAnyRole(w http.ResponseWriter, r *http.Request) (*User, bool) {
	u := userFrom(r.Context())
	switch {
	case u == nil:
		message(w, http.StatusUnauthorized, "Authentification requise.")
		return nil, false
	case u.Role != "proprietaire" && u.Role != "locataire" && u.Role != "admin":
		message(w, http.StatusForbidden, "Accès refusé.")
		return nil, false
	}
	return u, true
}
