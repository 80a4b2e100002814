package rental

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satanpticoeur/social-logement-app/core/apiclient"
	"github.com/satanpticoeur/social-logement-app/core/apitest"
)

type listing struct {
	*fixture
	dakar, thies          apitest.House
	studio, simple, taken apitest.Room
}

func newListing(t *testing.T) *listing {
	t.Helper()
	l := &listing{fixture: newFixture(t)}
	b := l.backend
	l.dakar = b.AddHouse(apitest.House{OwnerID: l.owner.ID, Adresse: "12 rue Carnot", Ville: "Dakar", Description: "Immeuble R+2"})
	l.thies = b.AddHouse(apitest.House{OwnerID: l.owner.ID, Adresse: "Route de Mbour", Ville: "Thiès"})
	l.studio = b.AddRoom(apitest.Room{MaisonID: l.dakar.ID, Titre: "Studio Plateau", Type: "studio", Taille: "20m²", Meublee: true, SalleDeBain: true, Prix: 120000})
	l.simple = b.AddRoom(apitest.Room{MaisonID: l.thies.ID, Titre: "Chambre simple", Type: "simple", Prix: 45000})
	l.taken = b.AddRoom(apitest.Room{MaisonID: l.dakar.ID, Titre: "Chambre louée", Type: "simple", Prix: 60000, Unavailable: true})
	b.AddMedia(apitest.Media{ChambreID: l.studio.ID, URL: "/static/uploads/chambres/salon.jpg"})
	return l
}

func TestSearchRoomsIsPublic(t *testing.T) {
	l := newListing(t)
	api := New(apitest.NewClient(t, l.url))
	ctx := context.Background()

	all, err := api.SearchRooms(ctx, SearchFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2, "rooms without a house and occupied rooms are not listed")
	require.Equal(t, l.studio.ID, all[0].ID)

	dakar, err := api.SearchRooms(ctx, SearchFilter{Ville: "dak"})
	require.NoError(t, err)
	require.Len(t, dakar, 1)
	require.Equal(t, "Dakar", dakar[0].City())
	require.Equal(t, "12 rue Carnot", dakar[0].AdresseMaison)
	require.Equal(t, Amount(120000), dakar[0].Prix)
	require.True(t, dakar[0].Meublee)
	require.Len(t, dakar[0].Medias, 1)

	cheap, err := api.SearchRooms(ctx, SearchFilter{MaxPrix: 50000})
	require.NoError(t, err)
	require.Len(t, cheap, 1)
	require.Equal(t, l.simple.ID, cheap[0].ID)

	unfurnished := false
	plain, err := api.SearchRooms(ctx, SearchFilter{Meublee: &unfurnished})
	require.NoError(t, err)
	require.Len(t, plain, 1)
	require.Equal(t, l.simple.ID, plain[0].ID)

	occupied, err := api.SearchRooms(ctx, SearchFilter{Occupied: true})
	require.NoError(t, err)
	require.Len(t, occupied, 1)
	require.Equal(t, l.taken.ID, occupied[0].ID)
	require.False(t, occupied[0].Disponible)

	none, err := api.SearchRooms(ctx, SearchFilter{Ville: "Kaolack"})
	require.NoError(t, err, "no match is an empty result")
	require.Empty(t, none)

	_, ok := l.backend.LastRequest("/api/locataire/chambres/recherche")
	require.True(t, ok)
}

func TestSearchFilterValidatedLocally(t *testing.T) {
	l := newListing(t)
	api := New(apitest.NewClient(t, l.url))
	before := len(l.backend.Requests())
	_, err := api.SearchRooms(context.Background(), SearchFilter{MinPrix: 90000, MaxPrix: 50000})
	require.True(t, errors.Is(err, ErrInvalidRequest))
	_, err = api.SearchRooms(context.Background(), SearchFilter{MinPrix: -1})
	require.True(t, errors.Is(err, ErrInvalidRequest))
	require.Len(t, l.backend.Requests(), before)
}

func TestSearchFilterQuery(t *testing.T) {
	yes := true
	q := SearchFilter{Ville: " Dakar ", Type: "studio", MinPrix: 1000, MaxPrix: 2500.5, Meublee: &yes, Occupied: true}.query()
	require.Equal(t, "disponible=false&max_prix=2500.5&meublee=true&min_prix=1000&type=studio&ville=Dakar", q.Encode())
	require.Empty(t, SearchFilter{}.query().Encode())
}

func TestAvailableRoom(t *testing.T) {
	l := newListing(t)
	api := New(apitest.NewClient(t, l.url))
	ctx := context.Background()

	room, err := api.AvailableRoom(ctx, l.studio.ID)
	require.NoError(t, err)
	require.Equal(t, "Studio Plateau", room.Titre)
	require.Equal(t, "20m²", room.Taille)
	require.True(t, room.SalleDeBain)

	_, err = api.AvailableRoom(ctx, l.taken.ID)
	status, ok := apiclient.StatusOf(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Chambre non trouvée ou non disponible.", apiclient.Message(err, ""))
}

func TestOwnerListings(t *testing.T) {
	l := newListing(t)
	now := time.Now().UTC()
	running := l.backend.AddContract(apitest.Contract{
		ChambreID: l.simple.ID, LocataireID: l.tenant.ID,
		DateDebut: now.AddDate(0, -1, 0).Format("2006-01-02"), DateFin: now.AddDate(0, 5, 0).Format("2006-01-02"),
		MontantCaution: 45000, DureeMois: 6, Statut: "actif",
	})
	api, _ := l.login(t, "awa@example.sn")
	ctx := context.Background()

	houses, err := api.OwnerHouses(ctx)
	require.NoError(t, err)
	require.Len(t, houses, 2)
	require.Equal(t, "Dakar", houses[0].Ville)
	require.Equal(t, 2, houses[0].NombreChambres)

	house, err := api.House(ctx, l.dakar.ID)
	require.NoError(t, err)
	require.Equal(t, "Immeuble R+2", house.Description)
	require.NotNil(t, house.Proprietaire)
	require.Equal(t, "Awa", house.Proprietaire.Nom)

	inHouse, err := api.HouseRooms(ctx, l.dakar.ID)
	require.NoError(t, err)
	require.Len(t, inHouse, 2)

	room, err := api.Room(ctx, l.studio.ID)
	require.NoError(t, err)
	require.Equal(t, Amount(120000), room.Prix, "detail view renders prix as a decimal string")
	require.NotNil(t, room.Maison)
	require.Equal(t, "Dakar", room.City())

	rooms, err := api.OwnerRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 4)
	var simple Room
	for _, r := range rooms {
		if r.ID == l.simple.ID {
			simple = r
		}
	}
	require.Len(t, simple.ContratsActifs, 1)
	require.Equal(t, running.ID, simple.ContratsActifs[0].ContratID)
	require.Equal(t, "Fatou", simple.ContratsActifs[0].LocataireNom)

	clients, err := api.OwnerClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1, "a tenant with several contracts is listed once")
	require.Equal(t, "fatou@example.sn", clients[0].Email)
	require.Nil(t, clients[0].Telephone)

	contracts, err := api.OwnerContracts(ctx)
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	require.Equal(t, running.ID, contracts[0].ID, "newest start date first")
	require.Equal(t, "Route de Mbour, Thiès", contracts[0].ChambreAdresse)
	require.Equal(t, Amount(45000), contracts[0].PrixMensuel)
	require.Equal(t, ContractActive, contracts[0].Statut)
}

func TestOwnerListingsRequireOwnerRole(t *testing.T) {
	l := newListing(t)
	api, _ := l.login(t, "fatou@example.sn")
	_, err := api.OwnerHouses(context.Background())
	status, ok := apiclient.StatusOf(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, status)

	_, err = api.HouseRooms(context.Background(), l.dakar.ID)
	status, _ = apiclient.StatusOf(err)
	require.Equal(t, http.StatusForbidden, status)
}
