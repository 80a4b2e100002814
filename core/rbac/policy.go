// Package rbac holds the route table: which views are protected and which
// roles may enter them.
package rbac

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
)

type RoutePolicy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	subjects map[string]struct{}
}

func NewRoutePolicy(rules []Rule) (*RoutePolicy, error) {
	m, err := newModel()
	if err != nil {
		return nil, fmt.Errorf("route model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("route enforcer: %w", err)
	}
	p := &RoutePolicy{enforcer: e, subjects: map[string]struct{}{}}
	for _, r := range rules {
		if err := p.Add(r); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Add appends a rule. Later rules widen access; they never narrow it.
func (p *RoutePolicy) Add(rule Rule) error {
	pattern := strings.TrimSpace(rule.Pattern)
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("route pattern %q must start with /", rule.Pattern)
	}
	subjects := make([]string, 0, len(rule.Roles))
	for _, r := range rule.Roles {
		if r = normalizeRole(r); r != "" {
			subjects = append(subjects, r)
		}
	}
	if len(subjects) == 0 {
		subjects = []string{AnyAuthenticated}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range subjects {
		if _, err := p.enforcer.AddPolicy(s, pattern); err != nil {
			return fmt.Errorf("add route %s for %s: %w", pattern, s, err)
		}
		p.subjects[s] = struct{}{}
	}
	return nil
}

// Lookup reports whether path is protected and which roles may enter it.
// A nil allow-list means any authenticated user.
func (p *RoutePolicy) Lookup(path string) (allowed []string, protected bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	open := false
	for s := range p.subjects {
		ok, err := p.enforcer.Enforce(s, path)
		if err != nil || !ok {
			continue
		}
		protected = true
		if s == AnyAuthenticated {
			open = true
			continue
		}
		allowed = append(allowed, s)
	}
	if !protected || open {
		return nil, protected
	}
	sort.Strings(allowed)
	return allowed, true
}

// Allowed reports whether role may enter path. Unprotected paths allow everyone.
func (p *RoutePolicy) Allowed(role, path string) bool {
	allowed, protected := p.Lookup(path)
	if !protected || allowed == nil {
		return true
	}
	role = normalizeRole(role)
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
