package rbac

import (
	"strings"

	"github.com/casbin/casbin/v2/model"
)

// AnyAuthenticated is the subject of rules open to every signed-in user.
const AnyAuthenticated = "authenticated"

const routeModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch2(r.obj, p.obj)
`

// Rule protects every path matching Pattern (keyMatch2 syntax: "/lodger/*",
// "/owner/rooms/:id"). Empty Roles opens the route to any authenticated user.
type Rule struct {
	Pattern string
	Roles   []string
}

var defaultRules = []Rule{
	{Pattern: "/lodger", Roles: []string{"locataire"}},
	{Pattern: "/lodger/*", Roles: []string{"locataire"}},
	{Pattern: "/owner/dashboard", Roles: []string{"proprietaire"}},
	{Pattern: "/owner/dashboard/*", Roles: []string{"proprietaire"}},
	{Pattern: "/admin", Roles: []string{"admin"}},
	{Pattern: "/admin/*", Roles: []string{"admin"}},
}

func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	for i, r := range defaultRules {
		out[i] = Rule{Pattern: r.Pattern, Roles: append([]string(nil), r.Roles...)}
	}
	return out
}

func newModel() (model.Model, error) {
	return model.NewModelFromString(routeModel)
}

func normalizeRole(r string) string {
	return strings.ToLower(strings.TrimSpace(r))
}
