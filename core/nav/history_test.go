package nav

import "testing"

func TestHistoryNavigateReplaceBack(t *testing.T) {
	h := NewHistory("")
	if h.Current() != "/" {
		t.Fatalf("expected root, got %q", h.Current())
	}
	h.Navigate("login")
	h.Navigate("/lodger/")
	if h.Current() != "/lodger" {
		t.Fatalf("unexpected current %q", h.Current())
	}
	h.Replace("/owner/dashboard")
	if got := h.Entries(); len(got) != 3 || got[2] != "/owner/dashboard" {
		t.Fatalf("unexpected entries %v", got)
	}
	if !h.Back() || h.Current() != "/login" {
		t.Fatalf("back should return to /login, got %q", h.Current())
	}
	h.Back()
	if h.Back() {
		t.Fatalf("back past the first entry must fail")
	}
}

func TestHistoryOnChange(t *testing.T) {
	h := NewHistory("/login")
	var seen []string
	h.OnChange(func(p string) { seen = append(seen, p) })
	h.Navigate("/lodger")
	h.Replace("/")
	if len(seen) != 2 || seen[0] != "/lodger" || seen[1] != "/" {
		t.Fatalf("unexpected changes %v", seen)
	}
}
