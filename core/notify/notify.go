// Package notify delivers short user-visible notices (the terminal
// equivalent of toasts).
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/satanpticoeur/social-logement-app/core/utils"
)

// Level is the notice type.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

type Notice struct {
	Level       Level
	Title       string
	Description string
}

// Notifier shows a notice. Implementations must not block for long.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

func Success(n Notifier, title, desc string) { send(n, LevelSuccess, title, desc) }
func Error(n Notifier, title, desc string)   { send(n, LevelError, title, desc) }
func Warning(n Notifier, title, desc string) { send(n, LevelWarning, title, desc) }
func Info(n Notifier, title, desc string)    { send(n, LevelInfo, title, desc) }

func send(n Notifier, level Level, title, desc string) {
	if n == nil {
		return
	}
	n.Notify(Notice{Level: level, Title: title, Description: desc})
}

// Terminal renders notices as styled lines on w.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[Level]lipgloss.Style
	desc   lipgloss.Style
}

func NewTerminal(w io.Writer) *Terminal {
	badge := func(color string) lipgloss.Style {
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	return &Terminal{
		w: w,
		styles: map[Level]lipgloss.Style{
			LevelSuccess: badge("42"),
			LevelError:   badge("196"),
			LevelWarning: badge("214"),
			LevelInfo:    badge("39"),
		},
		desc: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (t *Terminal) Notify(n Notice) {
	style, ok := t.styles[n.Level]
	if !ok {
		style = t.styles[LevelInfo]
	}
	line := style.Render(symbol(n.Level) + " " + n.Title)
	if n.Description != "" {
		line += "  " + t.desc.Render(n.Description)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}

func symbol(l Level) string {
	switch l {
	case LevelSuccess:
		return "✓"
	case LevelError:
		return "✗"
	case LevelWarning:
		return "!"
	default:
		return "i"
	}
}

// Log writes notices through the structured logger.
type Log struct {
	Logger *utils.Logger
}

func (l Log) Notify(n Notice) {
	if l.Logger == nil {
		return
	}
	lg := l.Logger.With("notice_level", string(n.Level), "title", n.Title)
	switch n.Level {
	case LevelError:
		lg.Errorf("notice: %s", n.Description)
	case LevelWarning:
		lg.Warnf("notice: %s", n.Description)
	default:
		lg.Printf("notice: %s", n.Description)
	}
}

// Recorder keeps every notice in memory for later inspection.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}

// Multi fans a notice out to every non-nil notifier.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}
