package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/satanpticoeur/social-logement-app/core/utils"
)

type Role string

const (
	RoleOwner  Role = "proprietaire"
	RoleTenant Role = "locataire"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleTenant, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

var (
	ErrIncompleteSession   = errors.New("auth: incomplete session payload")
	ErrInvalidRegistration = errors.New("auth: invalid registration")
)

// Session is the authenticated user as reported by the backend. It only
// exists fully populated.
type Session struct {
	UserID      int64
	DisplayName string
	Role        Role
	Email       string
}

func (s Session) IsAdmin() bool  { return s.Role == RoleAdmin }
func (s Session) IsOwner() bool  { return s.Role == RoleOwner }
func (s Session) IsTenant() bool { return s.Role == RoleTenant }

// userID accepts both numeric and string identities (newer flask-jwt-extended
// versions require a string subject).
type userID struct {
	set   bool
	value int64
}

func (u *userID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	} else {
		s = string(b)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("user id %q: %w", s, err)
	}
	u.set, u.value = true, v
	return nil
}

type sessionPayload struct {
	UserID     userID `json:"user_id"`
	LoggedInAs userID `json:"logged_in_as"`
	Name       string `json:"nom_utilisateur"`
	Role       string `json:"role"`
	Email      string `json:"email"`
}

func decodeSession(raw json.RawMessage) (Session, error) {
	var p sessionPayload
	if len(raw) == 0 {
		return Session{}, ErrIncompleteSession
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrIncompleteSession, err)
	}
	id := p.UserID
	if !id.set {
		id = p.LoggedInAs
	}
	var missing []string
	if !id.set {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(p.Name) == "" {
		missing = append(missing, "nom_utilisateur")
	}
	if strings.TrimSpace(p.Role) == "" {
		missing = append(missing, "role")
	}
	if strings.TrimSpace(p.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return Session{}, fmt.Errorf("%w: missing %s", ErrIncompleteSession, strings.Join(missing, ", "))
	}
	return Session{
		UserID:      id.value,
		DisplayName: p.Name,
		Role:        Role(p.Role),
		Email:       p.Email,
	}, nil
}

// Registration is the sign-up form.
type Registration struct {
	Username   string `json:"nom_utilisateur"`
	Email      string `json:"email"`
	Password   string `json:"mot_de_passe"`
	Phone      string `json:"telephone,omitempty"`
	NationalID string `json:"cni,omitempty"`
	Role       Role   `json:"role"`
}

// Normalize trims fields and applies the default tenant role.
func (r Registration) Normalize() Registration {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.NationalID = strings.TrimSpace(r.NationalID)
	r.Role = Role(strings.ToLower(strings.TrimSpace(string(r.Role))))
	if r.Role == "" {
		r.Role = RoleTenant
	}
	return r
}

func (r Registration) Validate() error {
	if err := utils.ValidateUsername(r.Username); err != nil {
		return fmt.Errorf("%w: nom_utilisateur: %v", ErrInvalidRegistration, err)
	}
	if err := utils.ValidateEmail(r.Email); err != nil {
		return fmt.Errorf("%w: email: %v", ErrInvalidRegistration, err)
	}
	if err := utils.ValidatePassword(r.Password); err != nil {
		return fmt.Errorf("%w: mot_de_passe: %v", ErrInvalidRegistration, err)
	}
	if r.Phone != "" {
		if err := utils.ValidatePhone(r.Phone); err != nil {
			return fmt.Errorf("%w: telephone: %v", ErrInvalidRegistration, err)
		}
	}
	if r.NationalID != "" {
		if err := utils.ValidateNationalID(r.NationalID); err != nil {
			return fmt.Errorf("%w: cni: %v", ErrInvalidRegistration, err)
		}
	}
	if !r.Role.Valid() {
		return fmt.Errorf("%w: role %q", ErrInvalidRegistration, r.Role)
	}
	return nil
}
