// Package apitest runs an in-process stand-in for the REST backend. It
// follows flask-jwt-extended cookie semantics: an HttpOnly access cookie, a
// script-readable csrf_access_token cookie, and an X-CSRF-TOKEN check on
// mutating requests.
package apitest

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	AccessCookie = "access_token_cookie"
	CSRFCookie   = "csrf_access_token"
	CSRFHeader   = "X-CSRF-TOKEN"
)

type User struct {
	ID       int64
	Name     string
	Email    string
	Password string
	Role     string
	Phone    string
	CNI      string
}

// Recorded is one request as seen by the backend.
type Recorded struct {
	Method      string
	Path        string
	CSRF        string
	HasCSRF     bool
	ContentType string
	Cookies     []string
}

type Option func(*Backend)

// WithAuthPrefix mounts the auth endpoints under /api/<prefix>/.
func WithAuthPrefix(prefix string) Option {
	return func(b *Backend) { b.authPrefix = strings.Trim(prefix, "/") }
}

// WithGatewayURL sets the base of the checkout URLs handed out.
func WithGatewayURL(u string) Option {
	return func(b *Backend) { b.gatewayURL = strings.TrimRight(u, "/") }
}

type Backend struct {
	mu         sync.Mutex
	secret     string
	authPrefix string
	gatewayURL string
	nextID     int64

	users     map[int64]*User
	sessions  map[string]int64
	houses    map[int64]*House
	rooms     map[int64]*Room
	contracts map[int64]*Contract
	payments  map[int64]*Payment
	media     map[int64]*Media
	checkouts map[string]int64

	requests []Recorded

	logoutStatus int

	router chi.Router
}

func New(opts ...Option) *Backend {
	b := &Backend{
		secret:     randomToken(32),
		gatewayURL: "https://pay.example.test/checkout",
		users:      map[int64]*User{},
		sessions:   map[string]int64{},
		houses:     map[int64]*House{},
		rooms:      map[int64]*Room{},
		contracts:  map[int64]*Contract{},
		payments:   map[int64]*Payment{},
		media:      map[int64]*Media{},
		checkouts:  map[string]int64{},
	}
	for _, o := range opts {
		o(b)
	}
	b.router = b.routes()
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// Start serves the backend on a loopback listener closed at test cleanup.
func (b *Backend) Start(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return srv
}

func (b *Backend) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Route("/api", func(api chi.Router) {
		authBase := "/"
		if b.authPrefix != "" {
			authBase = "/" + b.authPrefix + "/"
		}
		api.Post(authBase+"login", b.login)
		api.Post(authBase+"register", b.register)
		api.Post(authBase+"logout", b.logout)
		api.With(b.jwtRequired).Get(authBase+"protected", b.protected)

		api.Get("/locataire/chambres/recherche", b.searchRooms)
		api.Get("/locataire/chambres/{id}", b.availableRoom)

		api.Group(func(p chi.Router) {
			p.Use(b.jwtRequired)
			p.Get("/proprietaire/maisons", b.ownerHouses)
			p.Get("/proprietaire/chambres", b.ownerRooms)
			p.Get("/proprietaire/clients", b.ownerClients)
			p.Get("/proprietaire/contrats", b.ownerContracts)
			p.Get("/maisons/{id}", b.house)
			p.Get("/maisons/{id}/chambres", b.houseRooms)
			p.Get("/chambres/{id}", b.room)
			p.Get("/locataire/mes-demandes-contrats", b.tenantContracts)
			p.Get("/locataire/contrats/{id}/paiements", b.tenantContractPayments)
			p.Post("/locataire/chambres/{id}/louer", b.requestRental)
			p.Get("/proprietaire/paiements", b.ownerPayments)
			p.Get("/proprietaire/contrats/{id}/paiements", b.ownerContractPayments)
			p.Put("/proprietaire/paiements/{id}/marquer_paye", b.markPaid)
			p.Get("/proprietaire/demandes-location-en-attente", b.pendingRequests)
			p.Put("/proprietaire/contrats/{id}/{action}", b.decideRequest)
			p.Delete("/proprietaire/medias/{id}", b.deleteMedia)
			p.Post("/chambres/{id}/medias", b.uploadMedia)
			p.Post("/paiements/{id}/mobile-money", b.startCheckout)
		})
		api.Get("/paiements/{id}", b.payment)
	})
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, has := r.Header[http.CanonicalHeaderKey(CSRFHeader)]
		rec := Recorded{
			Method:      r.Method,
			Path:        r.URL.Path,
			CSRF:        r.Header.Get(CSRFHeader),
			HasCSRF:     has,
			ContentType: r.Header.Get("Content-Type"),
		}
		for _, c := range r.Cookies() {
			rec.Cookies = append(rec.Cookies, c.Name)
		}
		b.mu.Lock()
		b.requests = append(b.requests, rec)
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Requests returns every request received so far.
func (b *Backend) Requests() []Recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Recorded, len(b.requests))
	copy(out, b.requests)
	return out
}

// LastRequest returns the most recent request to path.
func (b *Backend) LastRequest(path string) (Recorded, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Path == path {
			return b.requests[i], true
		}
	}
	return Recorded{}, false
}

func (b *Backend) AddUser(u User) User {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	u.ID = b.nextID
	if u.Role == "" {
		u.Role = "locataire"
	}
	cp := u
	b.users[u.ID] = &cp
	return u
}

// FailLogout makes the logout endpoint answer status; 0 restores normal behaviour.
func (b *Backend) FailLogout(status int) {
	b.mu.Lock()
	b.logoutStatus = status
	b.mu.Unlock()
}

// ExpireSessions revokes every access token, as an expired JWT would.
func (b *Backend) ExpireSessions() {
	b.mu.Lock()
	b.sessions = map[string]int64{}
	b.mu.Unlock()
}

type ctxKey struct{}

func userFrom(ctx context.Context) *User {
	u, _ := ctx.Value(ctxKey{}).(*User)
	return u
}

func (b *Backend) jwtRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, token, ok := b.sessionUser(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": `Missing cookie "access_token_cookie"`})
			return
		}
		if isMutating(r.Method) {
			if msg := b.checkCSRF(r, token); msg != "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": msg})
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func (b *Backend) sessionUser(r *http.Request) (*User, string, bool) {
	c, err := r.Cookie(AccessCookie)
	if err != nil || c.Value == "" {
		return nil, "", false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.sessions[c.Value]
	if !ok {
		return nil, "", false
	}
	u, ok := b.users[id]
	if !ok {
		return nil, "", false
	}
	cp := *u
	return &cp, c.Value, true
}

func (b *Backend) checkCSRF(r *http.Request, accessToken string) string {
	header := r.Header.Get(CSRFHeader)
	if header == "" {
		return "Missing CSRF token"
	}
	c, err := r.Cookie(CSRFCookie)
	if err != nil || !hmac.Equal([]byte(c.Value), []byte(header)) {
		return "CSRF double submit tokens do not match"
	}
	if err := verifyCSRF(b.secret, accessToken, header); err != nil {
		return "CSRF double submit tokens do not match"
	}
	return ""
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"mot_de_passe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Email et mot de passe requis."})
		return
	}
	b.mu.Lock()
	var found *User
	for _, u := range b.users {
		if strings.EqualFold(u.Email, req.Email) && u.Password == req.Password {
			cp := *u
			found = &cp
			break
		}
	}
	if found == nil {
		b.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Email ou mot de passe incorrect."})
		return
	}
	token := randomToken(32)
	b.sessions[token] = found.ID
	csrf := generateCSRF(b.secret, token, time.Now())
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: token, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: csrf, Path: "/", SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Connexion réussie.",
		"nom_utilisateur": found.Name,
		"role":            found.Role,
		"user_id":         found.ID,
		"email":           found.Email,
	})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"nom_utilisateur"`
		Email    string `json:"email"`
		Password string `json:"mot_de_passe"`
		Phone    string `json:"telephone"`
		CNI      string `json:"cni"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Email == "" || len(req.Password) < 6 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Champs manquants ou invalides."})
		return
	}
	b.mu.Lock()
	for _, u := range b.users {
		switch {
		case u.Name == req.Name:
			b.mu.Unlock()
			writeJSON(w, http.StatusConflict, map[string]string{"message": "Ce nom d'utilisateur existe déjà."})
			return
		case strings.EqualFold(u.Email, req.Email):
			b.mu.Unlock()
			writeJSON(w, http.StatusConflict, map[string]string{"message": "Cet email est déjà enregistré."})
			return
		case req.CNI != "" && u.CNI == req.CNI:
			b.mu.Unlock()
			writeJSON(w, http.StatusConflict, map[string]string{"message": "Cette CNI est déjà enregistrée."})
			return
		}
	}
	b.mu.Unlock()
	u := b.AddUser(User{Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role, Phone: req.Phone, CNI: req.CNI})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Utilisateur enregistré avec succès.",
		"user_id": u.ID,
		"role":    u.Role,
	})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if _, token, ok := b.sessionUser(r); ok {
		if msg := b.checkCSRF(r, token); msg != "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": msg})
			return
		}
	}
	b.mu.Lock()
	forced := b.logoutStatus
	b.mu.Unlock()
	if forced != 0 {
		writeJSON(w, forced, map[string]string{"message": "Erreur interne du serveur."})
		return
	}
	if c, err := r.Cookie(AccessCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, c.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: AccessCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: CSRFCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Déconnexion réussie."})
}

func (b *Backend) protected(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"logged_in_as":    u.ID,
		"nom_utilisateur": u.Name,
		"role":            u.Role,
		"email":           u.Email,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil && status != http.StatusNoContent {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
