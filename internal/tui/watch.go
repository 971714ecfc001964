// Package tui provides the interactive watch view for the bridge mailbox.
package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/scenebridge/internal/store"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(successColor).
		Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// OutcomeLister reads the recent async-task audit trail.
type OutcomeLister interface {
	ListOutcomes(limit int) ([]store.Outcome, error)
}

// Watch is the mailbox monitor model. It polls the request and response
// files and the audit trail, and renders whatever is newest.
type Watch struct {
	reqPath  string
	respPath string
	outcomes OutcomeLister

	viewport viewport.Model
	width    int
	height   int

	response  string
	respMod   time.Time
	reqBody   string
	audit     []store.Outcome
	respCount int
	message   string
}

// NewWatch creates a watch over the given mailbox files.
func NewWatch(reqPath, respPath string, outcomes OutcomeLister) *Watch {
	return &Watch{
		reqPath:  reqPath,
		respPath: respPath,
		outcomes: outcomes,
		viewport: viewport.New(80, 20),
	}
}

// Run starts the watch UI.
func (w *Watch) Run() error {
	p := tea.NewProgram(w, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type pollMsg struct {
	response string
	respMod  time.Time
	reqBody  string
	audit    []store.Outcome
}

type watchTickMsg time.Time

// Init implements tea.Model
func (w *Watch) Init() tea.Cmd {
	return w.poll()
}

// Update implements tea.Model
func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return w, tea.Quit
		case "r":
			return w, w.poll()
		}

	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		w.viewport.Width = msg.Width - 4
		w.viewport.Height = msg.Height - 12

	case pollMsg:
		if !msg.respMod.Equal(w.respMod) && !msg.respMod.IsZero() {
			w.respCount++
			w.message = fmt.Sprintf("Response at %s", msg.respMod.Format("15:04:05"))
		}
		w.response = msg.response
		w.respMod = msg.respMod
		w.reqBody = msg.reqBody
		w.audit = msg.audit
		w.viewport.SetContent(w.response)
		return w, w.tickCmd()

	case watchTickMsg:
		return w, w.poll()
	}

	var cmd tea.Cmd
	w.viewport, cmd = w.viewport.Update(msg)
	return w, cmd
}

// View implements tea.Model
func (w *Watch) View() string {
	var b strings.Builder

	header := titleStyle.Render("SCENEBRIDGE Mailbox Watch")
	header += "  " + mutedStyle.Render(w.respPath)
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("-", max(w.width, 20)) + "\n")

	// Pending request, if any is sitting in the mailbox.
	req := strings.TrimSpace(w.reqBody)
	if req != "" && req != "{}" {
		b.WriteString(lipgloss.NewStyle().Foreground(warningColor).Render(" Pending request: "+firstLine(req)) + "\n")
	} else {
		b.WriteString(mutedStyle.Render(" Mailbox idle") + "\n")
	}

	// Latest response panel.
	if w.response == "" {
		b.WriteString(panelStyle.Render("No response yet") + "\n")
	} else {
		b.WriteString(panelStyle.Render(w.viewport.View()) + "\n")
	}

	// Audit trail.
	if len(w.audit) > 0 {
		b.WriteString("\n " + lipgloss.NewStyle().Bold(true).Foreground(cyanColor).Render("Recent task outcomes") + "\n")
		for i, o := range w.audit {
			if i >= 5 {
				break
			}
			mark := okStyle.Render("+")
			if o.Result != "success" {
				mark = errStyle.Render("x")
			}
			line := fmt.Sprintf("  %s %s %s  %s", mark, o.Kind, o.Result, firstLine(o.Detail))
			b.WriteString(line + "\n")
		}
	}

	if w.message != "" {
		b.WriteString("\n" + okStyle.Render(" "+w.message) + "\n")
	}

	status := fmt.Sprintf(" Responses seen: %d | r:refresh | q:quit", w.respCount)
	b.WriteString("\n" + statusBarStyle.Width(max(w.width, 20)).Render(status))

	return b.String()
}

func (w *Watch) poll() tea.Cmd {
	return func() tea.Msg {
		var msg pollMsg
		if data, err := os.ReadFile(w.respPath); err == nil {
			msg.response = string(data)
		}
		if info, err := os.Stat(w.respPath); err == nil {
			msg.respMod = info.ModTime()
		}
		if data, err := os.ReadFile(w.reqPath); err == nil {
			msg.reqBody = string(data)
		}
		if w.outcomes != nil {
			if list, err := w.outcomes.ListOutcomes(5); err == nil {
				msg.audit = list
			}
		}
		return msg
	}
}

func (w *Watch) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
