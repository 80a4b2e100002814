// Package guard decides whether a protected view may be shown.
package guard

import (
	"github.com/satanpticoeur/social-logement-app/core/auth"
	"github.com/satanpticoeur/social-logement-app/core/nav"
	"github.com/satanpticoeur/social-logement-app/core/notify"
)

type Outcome int

const (
	Render Outcome = iota
	Redirect
	// Pending means the session is still loading; nothing is shown and
	// nobody is redirected yet.
	Pending
)

// Decision is the result of evaluating a protected view.
type Decision struct {
	Outcome Outcome
	Target  string
	Notice  *notify.Notice
}

func (d Decision) Allowed() bool { return d.Outcome == Render }

var (
	noticeLoginRequired = notify.Notice{
		Level:       notify.LevelError,
		Title:       "Accès refusé",
		Description: "Veuillez vous connecter pour accéder à cette page.",
	}
	noticeForbidden = notify.Notice{
		Level:       notify.LevelError,
		Title:       "Permission refusée",
		Description: "Vous n'avez pas les autorisations nécessaires pour accéder à cette page.",
	}
)

// Evaluate is pure. The authentication check always comes first. A nil
// allowedRoles means any authenticated user; an empty non-nil one admits nobody.
func Evaluate(isAuthenticated bool, role auth.Role, allowedRoles []string) Decision {
	if !isAuthenticated {
		n := noticeLoginRequired
		return Decision{Outcome: Redirect, Target: "/login", Notice: &n}
	}
	if allowedRoles != nil && !contains(allowedRoles, string(role)) {
		n := noticeForbidden
		return Decision{Outcome: Redirect, Target: "/", Notice: &n}
	}
	return Decision{Outcome: Render}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// RouteTable resolves the allow-list for a view path.
type RouteTable interface {
	Lookup(path string) (allowed []string, protected bool)
}

// Guard applies Evaluate to navigation. It never performs I/O: the session
// state must already be resolved.
type Guard struct {
	routes   RouteTable
	state    *auth.State
	nav      nav.Navigator
	notifier notify.Notifier
}

func New(routes RouteTable, state *auth.State, navigator nav.Navigator, notifier notify.Notifier) *Guard {
	return &Guard{routes: routes, state: state, nav: navigator, notifier: notifier}
}

// Check evaluates path without side effects. Unprotected paths always render.
func (g *Guard) Check(path string) Decision {
	allowed, protected := g.routes.Lookup(path)
	if !protected {
		return Decision{Outcome: Render}
	}
	snap := g.state.Snapshot()
	if snap.Loading {
		return Decision{Outcome: Pending}
	}
	if snap.Session == nil {
		return Evaluate(false, "", allowed)
	}
	return Evaluate(true, snap.Session.Role, allowed)
}

// Enter navigates to path when allowed; otherwise it shows the notice and
// replaces the location with the redirect target. A pending decision leaves
// the location untouched.
func (g *Guard) Enter(path string) Decision {
	d := g.Check(path)
	if d.Outcome == Pending {
		return d
	}
	if d.Notice != nil && g.notifier != nil {
		g.notifier.Notify(*d.Notice)
	}
	if g.nav == nil {
		return d
	}
	if d.Allowed() {
		g.nav.Navigate(path)
	} else {
		g.nav.Replace(d.Target)
	}
	return d
}
