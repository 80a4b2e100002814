package auth

import (
	"context"

	"github.com/satanpticoeur/social-logement-app/core/nav"
)

// Redirects maps roles to their landing view.
type Redirects struct {
	Tenant   string
	Owner    string
	Admin    string
	Fallback string
}

func DefaultRedirects() Redirects {
	return Redirects{Tenant: "/lodger", Owner: "/owner/dashboard", Admin: "/admin/dashboard", Fallback: "/"}
}

// Target returns the landing view for role.
func (r Redirects) Target(role Role) string {
	var target string
	switch role {
	case RoleTenant:
		target = r.Tenant
	case RoleOwner:
		target = r.Owner
	case RoleAdmin:
		target = r.Admin
	}
	if target == "" {
		target = r.Fallback
	}
	if target == "" {
		target = "/"
	}
	return target
}

// RoleRedirect sends a freshly authenticated user to their dashboard, but
// only while they sit on one of the entry views (login/register by default).
func RoleRedirect(navigator nav.Navigator, r Redirects, entryViews ...string) Hook {
	if len(entryViews) == 0 {
		entryViews = []string{"/login", "/register"}
	}
	return func(_ context.Context, s Session) {
		if navigator == nil {
			return
		}
		cur := navigator.Current()
		for _, v := range entryViews {
			if cur == v {
				navigator.Navigate(r.Target(s.Role))
				return
			}
		}
	}
}
