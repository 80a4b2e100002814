package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satanpticoeur/social-logement-app/config"
	"github.com/satanpticoeur/social-logement-app/core/apitest"
)

type env struct {
	backend    *apitest.Backend
	configPath string
	room       apitest.Room
	contract   apitest.Contract
	payment    apitest.Payment
	pending    apitest.Contract
}

func newEnv(t *testing.T) *env {
	t.Helper()
	b := apitest.New()
	owner := b.AddUser(apitest.User{Name: "Awa", Email: "awa@example.sn", Password: "secret", Role: "proprietaire"})
	tenant := b.AddUser(apitest.User{Name: "Fatou", Email: "fatou@example.sn", Password: "secret", Role: "locataire"})
	other := b.AddUser(apitest.User{Name: "Moussa", Email: "moussa@example.sn", Password: "secret", Role: "locataire"})
	e := &env{backend: b}
	e.room = b.AddRoom(apitest.Room{OwnerID: owner.ID, Titre: "Chambre Médina", Prix: 75000})
	e.contract = b.AddContract(apitest.Contract{ChambreID: e.room.ID, LocataireID: tenant.ID, DateDebut: "2026-01-01", DateFin: "2026-03-01", DureeMois: 2, MontantCaution: 75000, Statut: "actif"})
	e.payment = b.AddPayment(apitest.Payment{ContratID: e.contract.ID, Montant: 75000, DateEcheance: "2026-02-01"})
	studio := b.AddRoom(apitest.Room{OwnerID: owner.ID, Titre: "Studio Plateau", Prix: 120000})
	e.pending = b.AddContract(apitest.Contract{ChambreID: studio.ID, LocataireID: other.ID, DateDebut: "2026-12-01", DateFin: "2027-03-01", DureeMois: 3, MontantCaution: 120000})
	srv := b.Start(t)

	dir := t.TempDir()
	e.configPath = filepath.Join(dir, "app.yaml")
	yaml := fmt.Sprintf(`app_env: dev
backend:
  url: %s
cookie_store:
  path: %s
  passphrase: test-passphrase
agent:
  public_url: http://127.0.0.1:8765
`, srv.URL, filepath.Join(dir, "cookies.db"))
	require.NoError(t, os.WriteFile(e.configPath, []byte(yaml), 0o600))
	return e
}

// run executes one CLI invocation, like a separate process sharing the
// cookie store file.
func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(Options{
		Out:         &out,
		Err:         &out,
		LoadConfig:  config.LoadFile,
		Interactive: func() bool { return false },
	})
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoginPersistsSessionAcrossRuns(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "non connecté")

	out, err = e.run(t, "login", "--email", "fatou@example.sn", "--password", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Bienvenue, Fatou !")
	require.Contains(t, out, "Vue: /lodger")

	out, err = e.run(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Fatou <fatou@example.sn>")
	require.Contains(t, out, "authenticated")

	out, err = e.run(t, "login")
	require.NoError(t, err)
	require.Contains(t, out, "Déjà connecté en tant que Fatou")

	out, err = e.run(t, "payments", "list")
	require.NoError(t, err)
	require.Contains(t, out, "Chambre Médina")
	require.Contains(t, out, "75000 FCFA")
	require.Contains(t, out, "impayé")

	out, err = e.run(t, "open", "/owner/dashboard")
	require.Error(t, err)
	require.Contains(t, out, "Permission refusée")
	require.Contains(t, out, "Vue: /")

	out, err = e.run(t, "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Vous avez été déconnecté.")

	out, err = e.run(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "non connecté")
}

func TestLoginFailureAndMissingFlags(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "login", "--email", "fatou@example.sn", "--password", "wrong")
	require.Error(t, err)
	require.Contains(t, out, "Échec de la connexion")
	require.Contains(t, out, "Email ou mot de passe incorrect.")

	_, err = e.run(t, "login", "--email", "fatou@example.sn")
	require.ErrorContains(t, err, "--password")
}

func TestAnonymousCommandsAreRedirected(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "open", "/lodger")
	require.Error(t, err)
	require.Contains(t, out, "Accès refusé")
	require.Contains(t, out, "Vue: /login")

	out, err = e.run(t, "open", "/about")
	require.NoError(t, err)
	require.Contains(t, out, "Vue: /about")

	_, err = e.run(t, "requests", "list")
	require.ErrorContains(t, err, "accès refusé")
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	out, err := e.run(t, "register", "--username", "Ibrahima", "--email", "ibrahima@example.sn", "--password", "secret1", "--role", "proprietaire")
	require.NoError(t, err)
	require.Contains(t, out, "Utilisateur enregistré avec succès.")

	out, err = e.run(t, "login", "--email", "ibrahima@example.sn", "--password", "secret1")
	require.NoError(t, err)
	require.Contains(t, out, "Vue: /owner/dashboard")

	_, err = e.run(t, "register", "--username", "X", "--email", "not-an-email", "--password", "secret1")
	require.Error(t, err)
}

func TestOwnerReviewsRequestsAndRecordsPayment(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "login", "--email", "awa@example.sn", "--password", "secret")
	require.NoError(t, err)

	out, err := e.run(t, "requests", "list")
	require.NoError(t, err)
	require.Contains(t, out, "Moussa")
	require.Contains(t, out, "Studio Plateau")

	out, err = e.run(t, "requests", "approve", itoa(e.pending.ID))
	require.NoError(t, err)
	require.Contains(t, out, "Demande traitée")
	require.Equal(t, "actif", e.backend.ContractStatus(e.pending.ID))

	out, err = e.run(t, "payments", "list")
	require.NoError(t, err)
	require.Contains(t, out, "Fatou")
	require.Contains(t, out, "Impayé:")

	out, err = e.run(t, "payments", "mark-paid", itoa(e.payment.ID))
	require.NoError(t, err)
	require.Contains(t, out, "Paiement enregistré")
	require.Equal(t, "payé", e.backend.PaymentStatus(e.payment.ID))

	out, err = e.run(t, "payments", "show", itoa(e.payment.ID))
	require.NoError(t, err)
	require.Contains(t, out, "payé")

	_, err = e.run(t, "pay", itoa(e.payment.ID))
	require.ErrorContains(t, err, "accès refusé", "owners cannot open the tenant payment view")
}

func TestPayRendersCheckout(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "login", "--email", "fatou@example.sn", "--password", "secret")
	require.NoError(t, err)

	png := filepath.Join(t.TempDir(), "checkout.png")
	out, err := e.run(t, "pay", itoa(e.payment.ID), "--png", png)
	require.NoError(t, err)
	require.Contains(t, out, "https://pay.example.test/checkout?")
	require.Contains(t, out, "return_url=http%3A%2F%2F127.0.0.1%3A8765%2Fpayments%2Freturn")
	_, err = os.Stat(png)
	require.NoError(t, err)
}

func TestRentValidatesLocally(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "rooms", "rent", itoa(e.room.ID), "--debut", "01/12/2026", "--duree", "3")
	require.ErrorContains(t, err, "date_debut")
	for _, r := range e.backend.Requests() {
		require.False(t, strings.Contains(r.Path, "/louer"), "no request should reach the backend")
	}
}

func TestVersionNeedsNoConfig(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand(Options{
		Out: &out,
		Err: &out,
		LoadConfig: func(string) (*config.AppConfig, error) {
			t.Fatal("version must not load the config")
			return nil, nil
		},
	})
	root.SetArgs([]string{"version"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Equal(t, "logement dev\n", out.String())
}

func TestAuthPathPrefixFromConfig(t *testing.T) {
	b := apitest.New(apitest.WithAuthPrefix("auth"))
	b.AddUser(apitest.User{Name: "Fatou", Email: "fatou@example.sn", Password: "secret", Role: "locataire"})
	srv := b.Start(t)
	dir := t.TempDir()
	e := &env{backend: b, configPath: filepath.Join(dir, "app.yaml")}
	yaml := fmt.Sprintf(`app_env: dev
backend:
  url: %s
auth:
  path_prefix: /auth/
cookie_store:
  path: %s
  passphrase: test-passphrase
`, srv.URL, filepath.Join(dir, "cookies.db"))
	require.NoError(t, os.WriteFile(e.configPath, []byte(yaml), 0o600))

	out, err := e.run(t, "login", "--email", "fatou@example.sn", "--password", "secret")
	require.NoError(t, err)
	require.Contains(t, out, "Bienvenue, Fatou !")
	_, ok := b.LastRequest("/api/auth/login")
	require.True(t, ok)

	out, err = e.run(t, "status")
	require.NoError(t, err)
	require.Contains(t, out, "Fatou <fatou@example.sn>")
	_, ok = b.LastRequest("/api/auth/protected")
	require.True(t, ok)
}

func TestListingCommands(t *testing.T) {
	e := newEnv(t)
	owner := e.room.OwnerID
	dakar := e.backend.AddHouse(apitest.House{OwnerID: owner, Adresse: "12 rue Carnot", Ville: "Dakar"})
	studio := e.backend.AddRoom(apitest.Room{MaisonID: dakar.ID, Titre: "Studio Fann", Type: "studio", Meublee: true, Prix: 150000})
	e.backend.AddRoom(apitest.Room{MaisonID: dakar.ID, Titre: "Chambre Sicap", Type: "simple", Prix: 50000})

	out, err := e.run(t, "rooms", "search", "--ville", "dakar", "--max-prix", "100000")
	require.NoError(t, err, "search is open to anonymous users")
	require.Contains(t, out, "Chambre Sicap")
	require.NotContains(t, out, "Studio Fann")

	out, err = e.run(t, "rooms", "search", "--ville", "Kaolack")
	require.NoError(t, err)
	require.Contains(t, out, "Aucun résultat.")

	_, err = e.run(t, "rooms", "search", "--min-prix", "9", "--max-prix", "1")
	require.ErrorContains(t, err, "min_prix")

	out, err = e.run(t, "rooms", "show", itoa(studio.ID))
	require.NoError(t, err)
	require.Contains(t, out, "Studio Fann")
	require.Contains(t, out, "12 rue Carnot, Dakar")
	require.Contains(t, out, "150000 FCFA")

	_, err = e.run(t, "houses", "list")
	require.ErrorContains(t, err, "accès refusé")

	_, err = e.run(t, "login", "--email", "awa@example.sn", "--password", "secret")
	require.NoError(t, err)

	out, err = e.run(t, "houses", "list")
	require.NoError(t, err)
	require.Contains(t, out, "12 rue Carnot")

	out, err = e.run(t, "houses", "show", itoa(dakar.ID))
	require.NoError(t, err)
	require.Contains(t, out, "Studio Fann")
	require.Contains(t, out, "Chambre Sicap")

	out, err = e.run(t, "rooms", "list")
	require.NoError(t, err)
	require.Contains(t, out, "Chambre Médina")
	require.Contains(t, out, "Studio Fann")

	out, err = e.run(t, "clients")
	require.NoError(t, err)
	require.Contains(t, out, "fatou@example.sn")
	require.Contains(t, out, "moussa@example.sn")

	out, err = e.run(t, "contracts")
	require.NoError(t, err)
	require.Contains(t, out, "Studio Plateau")
	require.Contains(t, out, "Moussa")
	_, ok := e.backend.LastRequest("/api/proprietaire/contrats")
	require.True(t, ok)
}

func TestTenantContractsCommand(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "login", "--email", "fatou@example.sn", "--password", "secret")
	require.NoError(t, err)

	out, err := e.run(t, "contracts")
	require.NoError(t, err)
	require.Contains(t, out, "Chambre Médina")
	require.Contains(t, out, "Awa")
	_, ok := e.backend.LastRequest("/api/locataire/mes-demandes-contrats")
	require.True(t, ok)

	_, err = e.run(t, "clients")
	require.ErrorContains(t, err, "accès refusé")
}
