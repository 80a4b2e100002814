// Package rental wraps the tenant and owner endpoints of the backend.
package rental

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/satanpticoeur/social-logement-app/core/apiclient"
)

// Requester is satisfied by *apiclient.Client.
type Requester interface {
	DoInto(ctx context.Context, endpoint string, opts apiclient.Options, out any) error
}

type API struct {
	client Requester
}

func New(client Requester) *API {
	return &API{client: client}
}

func (a *API) get(ctx context.Context, endpoint string, out any) error {
	return a.client.DoInto(ctx, endpoint, apiclient.Options{Method: http.MethodGet}, out)
}

// ListTenantContracts returns every request and contract of the signed-in tenant.
func (a *API) ListTenantContracts(ctx context.Context) ([]Contract, error) {
	var out []Contract
	if err := a.get(ctx, "locataire/mes-demandes-contrats", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) ContractPayments(ctx context.Context, contratID int64) ([]Payment, error) {
	var out []Payment
	if err := a.get(ctx, fmt.Sprintf("locataire/contrats/%d/paiements", contratID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) RequestRental(ctx context.Context, chambreID int64, req RentalRequest) (RentalRequestResult, error) {
	var out RentalRequestResult
	if err := req.Validate(); err != nil {
		return out, err
	}
	err := a.client.DoInto(ctx, fmt.Sprintf("locataire/chambres/%d/louer", chambreID),
		apiclient.Options{Method: http.MethodPost, Body: req}, &out)
	return out, err
}

func (a *API) OwnerPayments(ctx context.Context) (OwnerPayments, error) {
	var out OwnerPayments
	err := a.get(ctx, "proprietaire/paiements", &out)
	return out, err
}

func (a *API) OwnerContractPayments(ctx context.Context, contratID int64) ([]Payment, error) {
	var out []Payment
	if err := a.get(ctx, fmt.Sprintf("proprietaire/contrats/%d/paiements", contratID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaid records a cash or transfer payment on the owner side.
func (a *API) MarkPaid(ctx context.Context, paiementID int64) (string, error) {
	var out messageResponse
	err := a.client.DoInto(ctx, fmt.Sprintf("proprietaire/paiements/%d/marquer_paye", paiementID),
		apiclient.Options{Method: http.MethodPut}, &out)
	return out.Message, err
}

func (a *API) PendingRentalRequests(ctx context.Context) ([]PendingRequest, error) {
	var out []PendingRequest
	if err := a.get(ctx, "proprietaire/demandes-location-en-attente", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) DecideRentalRequest(ctx context.Context, contratID int64, d Decision) (string, error) {
	if d != Approve && d != Reject {
		return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidRequest, d)
	}
	var out messageResponse
	err := a.client.DoInto(ctx, fmt.Sprintf("proprietaire/contrats/%d/%s", contratID, d),
		apiclient.Options{Method: http.MethodPut}, &out)
	return out.Message, err
}

func (a *API) DeleteMedia(ctx context.Context, mediaID int64) error {
	return a.client.DoInto(ctx, fmt.Sprintf("proprietaire/medias/%d", mediaID),
		apiclient.Options{Method: http.MethodDelete}, nil)
}

// MediaFile is one photo to upload.
type MediaFile struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// UploadRoomMedia sends the files as multipart parts under the "files" key.
// A partial success (HTTP 207) is not an error; inspect UploadResult.Errors.
func (a *API) UploadRoomMedia(ctx context.Context, chambreID int64, files []MediaFile) (UploadResult, error) {
	var out UploadResult
	if len(files) == 0 {
		return out, fmt.Errorf("%w: no files", ErrInvalidRequest)
	}
	form := &apiclient.Multipart{}
	for _, f := range files {
		form.Files = append(form.Files, apiclient.FormFile{
			Field:       "files",
			Filename:    f.Filename,
			ContentType: f.ContentType,
			Content:     f.Content,
		})
	}
	err := a.client.DoInto(ctx, fmt.Sprintf("chambres/%d/medias", chambreID),
		apiclient.Options{Method: http.MethodPost, Body: form}, &out)
	return out, err
}

// Payment fetches one payment. The backend is authoritative for its status.
func (a *API) Payment(ctx context.Context, paiementID int64) (Payment, error) {
	var out Payment
	err := a.get(ctx, fmt.Sprintf("paiements/%d", paiementID), &out)
	return out, err
}

// SearchRooms queries the public room search. The backend answers 404 when
// nothing matches; that is reported as an empty result.
func (a *API) SearchRooms(ctx context.Context, f SearchFilter) ([]Room, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	endpoint := "locataire/chambres/recherche"
	if q := f.query().Encode(); q != "" {
		endpoint += "?" + q
	}
	var out []Room
	if err := a.get(ctx, endpoint, &out); err != nil {
		if status, ok := apiclient.StatusOf(err); ok && status == http.StatusNotFound {
			return []Room{}, nil
		}
		return nil, err
	}
	return out, nil
}

// AvailableRoom returns a room as shown to prospective tenants. Occupied
// rooms are reported as not found.
func (a *API) AvailableRoom(ctx context.Context, chambreID int64) (Room, error) {
	var out Room
	err := a.get(ctx, fmt.Sprintf("locataire/chambres/%d", chambreID), &out)
	return out, err
}

// Room returns the full room record with its house embedded.
func (a *API) Room(ctx context.Context, chambreID int64) (Room, error) {
	var out Room
	err := a.get(ctx, fmt.Sprintf("chambres/%d", chambreID), &out)
	return out, err
}

func (a *API) House(ctx context.Context, maisonID int64) (House, error) {
	var out House
	err := a.get(ctx, fmt.Sprintf("maisons/%d", maisonID), &out)
	return out, err
}

func (a *API) HouseRooms(ctx context.Context, maisonID int64) ([]Room, error) {
	var out []Room
	if err := a.get(ctx, fmt.Sprintf("maisons/%d/chambres", maisonID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) OwnerHouses(ctx context.Context) ([]House, error) {
	var out []House
	if err := a.get(ctx, "proprietaire/maisons", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OwnerRooms lists the owner's rooms with their running contracts.
func (a *API) OwnerRooms(ctx context.Context) ([]Room, error) {
	var out []Room
	if err := a.get(ctx, "proprietaire/chambres", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) OwnerClients(ctx context.Context) ([]Client, error) {
	var out []Client
	if err := a.get(ctx, "proprietaire/clients", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) OwnerContracts(ctx context.Context) ([]OwnerContract, error) {
	var out []OwnerContract
	if err := a.get(ctx, "proprietaire/contrats", &out); err != nil {
		return nil, err
	}
	return out, nil
}
