package rbac

import (
	"reflect"
	"testing"
)

func TestDefaultRouteTable(t *testing.T) {
	p, err := NewRoutePolicy(DefaultRules())
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	cases := []struct {
		path      string
		allowed   []string
		protected bool
	}{
		{"/lodger", []string{"locataire"}, true},
		{"/lodger/payments", []string{"locataire"}, true},
		{"/lodger/contracts/4/payments", []string{"locataire"}, true},
		{"/owner/dashboard", []string{"proprietaire"}, true},
		{"/owner/dashboard/requests", []string{"proprietaire"}, true},
		{"/admin/dashboard", []string{"admin"}, true},
		{"/", nil, false},
		{"/login", nil, false},
		{"/rooms/12", nil, false},
		{"/lodgers", nil, false},
	}
	for _, tc := range cases {
		allowed, protected := p.Lookup(tc.path)
		if protected != tc.protected || !reflect.DeepEqual(allowed, tc.allowed) {
			t.Fatalf("Lookup(%q) = %v,%v want %v,%v", tc.path, allowed, protected, tc.allowed, tc.protected)
		}
	}
	if p.Allowed("locataire", "/owner/dashboard") {
		t.Fatalf("tenant must not enter the owner dashboard")
	}
	if !p.Allowed("PROPRIETAIRE", "/owner/dashboard/rooms") {
		t.Fatalf("role match must be case-insensitive")
	}
}

func TestExtraRules(t *testing.T) {
	p, err := NewRoutePolicy(append(DefaultRules(),
		Rule{Pattern: "/profile"},
		Rule{Pattern: "/contracts/:id", Roles: []string{"locataire", "proprietaire"}},
		Rule{Pattern: "/admin/*", Roles: []string{"proprietaire"}},
	))
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if allowed, protected := p.Lookup("/profile"); !protected || allowed != nil {
		t.Fatalf("open rule must yield nil allow-list, got %v %v", allowed, protected)
	}
	allowed, _ := p.Lookup("/contracts/9")
	if !reflect.DeepEqual(allowed, []string{"locataire", "proprietaire"}) {
		t.Fatalf("unexpected allow-list %v", allowed)
	}
	allowed, _ = p.Lookup("/admin/users")
	if !reflect.DeepEqual(allowed, []string{"admin", "proprietaire"}) {
		t.Fatalf("rules must widen access, got %v", allowed)
	}
}

func TestRejectsRelativePattern(t *testing.T) {
	if _, err := NewRoutePolicy([]Rule{{Pattern: "lodger"}}); err == nil {
		t.Fatalf("expected error for relative pattern")
	}
}
