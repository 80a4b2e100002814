// Package nav tracks the current view path and its history.
package nav

import (
	"strings"
	"sync"
)

// Navigator moves between views.
type Navigator interface {
	Current() string
	Navigate(path string)
	Replace(path string)
}

// History is an in-memory navigator. It is safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []string
	subs    []func(string)
}

func NewHistory(start string) *History {
	return &History{entries: []string{clean(start)}}
}

func (h *History) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.entries[len(h.entries)-1]
}

// Navigate pushes path.
func (h *History) Navigate(path string) {
	h.mu.Lock()
	h.entries = append(h.entries, clean(path))
	subs := h.subs
	h.mu.Unlock()
	notify(subs, clean(path))
}

// Replace swaps the current entry, so the previous view is not reachable by Back.
func (h *History) Replace(path string) {
	h.mu.Lock()
	h.entries[len(h.entries)-1] = clean(path)
	subs := h.subs
	h.mu.Unlock()
	notify(subs, clean(path))
}

// Back pops one entry and reports whether it moved.
func (h *History) Back() bool {
	h.mu.Lock()
	if len(h.entries) < 2 {
		h.mu.Unlock()
		return false
	}
	h.entries = h.entries[:len(h.entries)-1]
	cur := h.entries[len(h.entries)-1]
	subs := h.subs
	h.mu.Unlock()
	notify(subs, cur)
	return true
}

func (h *History) Entries() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// OnChange registers fn to run after every location change.
func (h *History) OnChange(fn func(path string)) {
	h.mu.Lock()
	h.subs = append(h.subs, fn)
	h.mu.Unlock()
}

func notify(subs []func(string), path string) {
	for _, fn := range subs {
		fn(path)
	}
}

func clean(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
