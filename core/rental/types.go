package rental

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Amount is a FCFA amount. The backend renders it as a number in most
// endpoints and as a decimal string in others.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("amount %q: %w", s, err)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

func (a Amount) String() string {
	return strconv.FormatFloat(float64(a), 'f', -1, 64) + " FCFA"
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "payé"
	PaymentUnpaid  PaymentStatus = "impayé"
	PaymentPartial PaymentStatus = "partiel"
)

type ContractStatus string

const (
	ContractPending  ContractStatus = "en_attente_validation"
	ContractActive   ContractStatus = "actif"
	ContractRejected ContractStatus = "rejete"
	ContractEnded    ContractStatus = "termine"
)

type Contract struct {
	ID              int64          `json:"id"`
	ChambreID       int64          `json:"chambre_id"`
	ChambreTitre    string         `json:"chambre_titre"`
	ProprietaireNom string         `json:"proprietaire_nom"`
	DateDebut       string         `json:"date_debut"`
	DateFin         string         `json:"date_fin"`
	MontantCaution  Amount         `json:"montant_caution"`
	DureeMois       int            `json:"duree_mois"`
	Statut          ContractStatus `json:"statut"`
}

type Payment struct {
	ID           int64         `json:"id"`
	ContratID    int64         `json:"contrat_id,omitempty"`
	Montant      Amount        `json:"montant"`
	DateEcheance string        `json:"date_echeance,omitempty"`
	DatePaiement *string       `json:"date_paiement"`
	Statut       PaymentStatus `json:"statut"`
	Description  *string       `json:"description,omitempty"`
	CreeLe       string        `json:"cree_le,omitempty"`
	ChambreTitre string        `json:"chambre_titre,omitempty"`
	LocataireNom string        `json:"locataire_nom_utilisateur,omitempty"`
}

func (p Payment) Paid() bool { return p.Statut == PaymentPaid }

type DashboardSummary struct {
	TotalPaye   Amount `json:"total_paye"`
	TotalImpaye Amount `json:"total_impaye"`
	NbPayes     int    `json:"nombre_paiements_payes"`
	NbImpayes   int    `json:"nombre_paiements_impayes"`
	NbPartiels  int    `json:"nombre_paiements_partiels"`
}

type OwnerPayments struct {
	Paiements []Payment        `json:"paiements"`
	Summary   DashboardSummary `json:"dashboard_summary"`
}

type PendingRequest struct {
	ID             int64          `json:"id"`
	LocataireID    int64          `json:"locataire_id"`
	LocataireNom   string         `json:"locataire_nom"`
	ChambreID      int64          `json:"chambre_id"`
	ChambreTitre   string         `json:"chambre_titre"`
	DateDebut      string         `json:"date_debut"`
	DateFin        string         `json:"date_fin"`
	MontantCaution Amount         `json:"montant_caution"`
	DureeMois      int            `json:"duree_mois"`
	Statut         ContractStatus `json:"statut"`
}

var ErrInvalidRequest = errors.New("rental: invalid request")

const dateLayout = "2006-01-02"

type RentalRequest struct {
	DateDebut string `json:"date_debut"`
	DureeMois int    `json:"duree_mois"`
}

// Validate checks the request shape; the backend still decides whether the
// start date is acceptable.
func (r RentalRequest) Validate() error {
	if _, err := time.Parse(dateLayout, r.DateDebut); err != nil {
		return fmt.Errorf("%w: date_debut must be YYYY-MM-DD", ErrInvalidRequest)
	}
	if r.DureeMois <= 0 {
		return fmt.Errorf("%w: duree_mois must be positive", ErrInvalidRequest)
	}
	return nil
}

type RentalRequestResult struct {
	Message   string `json:"message"`
	ContratID int64  `json:"contrat_id"`
}

type Decision string

const (
	Approve Decision = "approuver"
	Reject  Decision = "rejeter"
)

type UploadedMedia struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

type UploadResult struct {
	Message       string          `json:"message"`
	URLs          []UploadedMedia `json:"urls"`
	UploadedCount int             `json:"uploaded_count"`
	Errors        []string        `json:"errors"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Person is the compact user record embedded in houses.
type Person struct {
	ID    int64  `json:"id"`
	Nom   string `json:"nom_utilisateur"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type House struct {
	ID             int64   `json:"id"`
	ProprietaireID int64   `json:"proprietaire_id,omitempty"`
	Adresse        string  `json:"adresse"`
	Ville          string  `json:"ville"`
	Description    string  `json:"description"`
	NombreChambres int     `json:"nombre_chambres,omitempty"`
	CreeLe         string  `json:"cree_le"`
	Proprietaire   *Person `json:"proprietaire,omitempty"`
}

type RoomMedia struct {
	ID          int64  `json:"id"`
	ChambreID   int64  `json:"chambre_id,omitempty"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type ActiveContract struct {
	ContratID    int64          `json:"contrat_id"`
	LocataireNom string         `json:"locataire_nom_utilisateur"`
	DateDebut    string         `json:"date_debut"`
	DateFin      string         `json:"date_fin"`
	Statut       ContractStatus `json:"statut"`
}

// Room covers both the flat listing shape (adresse_maison, ville_maison) and
// the detail shape with the house embedded.
type Room struct {
	ID             int64            `json:"id"`
	MaisonID       int64            `json:"maison_id"`
	AdresseMaison  string           `json:"adresse_maison,omitempty"`
	VilleMaison    string           `json:"ville_maison,omitempty"`
	Titre          string           `json:"titre"`
	Description    string           `json:"description"`
	Taille         string           `json:"taille"`
	Type           string           `json:"type"`
	Meublee        bool             `json:"meublee"`
	SalleDeBain    bool             `json:"salle_de_bain"`
	Prix           Amount           `json:"prix"`
	Disponible     bool             `json:"disponible"`
	CreeLe         string           `json:"cree_le,omitempty"`
	Medias         []RoomMedia      `json:"medias"`
	Maison         *House           `json:"maison,omitempty"`
	ContratsActifs []ActiveContract `json:"contrats_actifs,omitempty"`
}

// City returns the house city from whichever shape was decoded.
func (r Room) City() string {
	if r.VilleMaison != "" {
		return r.VilleMaison
	}
	if r.Maison != nil {
		return r.Maison.Ville
	}
	return ""
}

type Client struct {
	ID        int64   `json:"id"`
	Nom       string  `json:"nom_utilisateur"`
	Email     string  `json:"email"`
	Telephone *string `json:"telephone"`
	CNI       *string `json:"cni"`
}

type OwnerContract struct {
	ID             int64          `json:"id"`
	LocataireID    int64          `json:"locataire_id"`
	LocataireNom   string         `json:"locataire_nom_utilisateur"`
	LocataireEmail string         `json:"locataire_email"`
	ChambreID      int64          `json:"chambre_id"`
	ChambreTitre   string         `json:"chambre_titre"`
	ChambreAdresse string         `json:"chambre_adresse"`
	PrixMensuel    Amount         `json:"prix_mensuel_chambre"`
	DateDebut      string         `json:"date_debut"`
	DateFin        string         `json:"date_fin"`
	MontantCaution Amount         `json:"montant_caution"`
	ModePaiement   string         `json:"mode_paiement,omitempty"`
	Periodicite    string         `json:"periodicite,omitempty"`
	Statut         ContractStatus `json:"statut"`
	Description    string         `json:"description,omitempty"`
	CreeLe         string         `json:"cree_le,omitempty"`
}

// SearchFilter narrows a room search. Zero values leave a criterion unset.
// The backend returns available rooms unless Occupied asks for the others.
type SearchFilter struct {
	Ville    string
	Type     string
	MinPrix  float64
	MaxPrix  float64
	Meublee  *bool
	Occupied bool
}

// Validate rejects negative or inverted price bounds.
func (f SearchFilter) Validate() error {
	if f.MinPrix < 0 || f.MaxPrix < 0 {
		return fmt.Errorf("%w: price bounds must not be negative", ErrInvalidRequest)
	}
	if f.MaxPrix > 0 && f.MinPrix > f.MaxPrix {
		return fmt.Errorf("%w: min_prix exceeds max_prix", ErrInvalidRequest)
	}
	return nil
}

func (f SearchFilter) query() url.Values {
	q := url.Values{}
	if v := strings.TrimSpace(f.Ville); v != "" {
		q.Set("ville", v)
	}
	if v := strings.TrimSpace(f.Type); v != "" {
		q.Set("type", v)
	}
	if f.MinPrix > 0 {
		q.Set("min_prix", strconv.FormatFloat(f.MinPrix, 'f', -1, 64))
	}
	if f.MaxPrix > 0 {
		q.Set("max_prix", strconv.FormatFloat(f.MaxPrix, 'f', -1, 64))
	}
	if f.Meublee != nil {
		q.Set("meublee", strconv.FormatBool(*f.Meublee))
	}
	if f.Occupied {
		q.Set("disponible", "false")
	}
	return q
}
