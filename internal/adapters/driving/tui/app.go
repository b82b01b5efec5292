// Package tui renders a live dashboard of a running scheduler and engine.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/arbiter/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/arbiter/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/arbiter/internal/core/domain"
)

// maxEvents is the number of events kept in the log panel.
const maxEvents = 12

// Dashboard is the bubbletea model for the watch view.
type Dashboard struct {
	title  string
	feed   *Feed
	styles *styles.Styles
	keymap *keymap.KeyMap
	help   help.Model

	snapshot *Snapshot
	events   []domain.Event

	// done is set once the run has stopped; err holds its failure.
	done bool
	err  error

	width  int
	height int
}

// Ensure Dashboard implements tea.Model.
var _ tea.Model = (*Dashboard)(nil)

// NewDashboard creates a dashboard reading from feed.
func NewDashboard(title string, feed *Feed) *Dashboard {
	return &Dashboard{
		title:  title,
		feed:   feed,
		styles: styles.DefaultStyles(),
		keymap: keymap.DefaultKeyMap(),
		help:   help.New(),
		width:  80,
	}
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("arbiter - "+d.title),
		d.feed.next(),
	)
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.help.Width = msg.Width
		return d, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keymap.Quit):
			return d, tea.Quit
		case key.Matches(msg, d.keymap.Help):
			d.help.ShowAll = !d.help.ShowAll
		case key.Matches(msg, d.keymap.Clear):
			d.events = nil
		}
		return d, nil

	case snapshotMsg:
		snap := Snapshot(msg)
		d.snapshot = &snap
		return d, d.feed.next()

	case eventMsg:
		d.events = append(d.events, domain.Event(msg))
		if len(d.events) > maxEvents {
			d.events = d.events[len(d.events)-maxEvents:]
		}
		return d, d.feed.next()

	case doneMsg:
		d.done = true
		d.err = msg.err
		return d, nil
	}
	return d, nil
}

// Done reports whether the run has stopped.
func (d *Dashboard) Done() bool {
	return d.done
}

// Err returns the run's failure, if any.
func (d *Dashboard) Err() error {
	return d.err
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(d.renderHeader())
	b.WriteString("\n\n")

	if d.snapshot == nil || d.snapshot.State == nil {
		b.WriteString(d.styles.Muted.Render("Waiting for the first step..."))
	} else {
		left := d.styles.Panel.Render(d.renderEngine())
		right := d.styles.Panel.Render(d.renderTasks())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	}
	b.WriteString("\n")
	b.WriteString(d.styles.Panel.Render(d.renderEvents()))
	b.WriteString("\n")
	b.WriteString(d.help.View(d.keymap))
	return b.String()
}

func (d *Dashboard) renderHeader() string {
	title := d.styles.Title.Render("arbiter") + " " + d.styles.Muted.Render(d.title)

	var status string
	switch {
	case d.err != nil:
		status = d.styles.Error.Render("stopped: " + d.err.Error())
	case d.done:
		status = d.styles.Success.Render("finished")
	case d.snapshot != nil:
		status = d.styles.Normal.Render(fmt.Sprintf("step %d", d.snapshot.Step))
	default:
		status = d.styles.Muted.Render("starting")
	}
	return title + "  " + status
}

func (d *Dashboard) renderEngine() string {
	s := d.snapshot.State
	lines := []string{
		d.styles.Subtitle.Render("Engine " + s.Address.String()),
		d.label("Pair", fmt.Sprintf("%s/%s", s.TokenA, s.TokenB)),
	}
	if s.Armed() {
		lines = append(lines, d.label("Status", d.styles.Success.Render(fmt.Sprintf("armed every %d steps", s.Period))))
	} else {
		lines = append(lines, d.label("Status", d.styles.Warning.Render("idle")))
	}
	lines = append(lines, d.label("Triggers", fmt.Sprintf("%d (last at step %d)", s.Triggers, s.LastTriggerStep)))

	tokens := make([]domain.Token, 0, len(s.Balances))
	for token := range s.Balances {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	for _, token := range tokens {
		lines = append(lines, d.label(token.String(), domain.FormatFixed(s.Balance(token))))
	}
	return strings.Join(lines, "\n")
}

func (d *Dashboard) renderTasks() string {
	lines := []string{d.styles.Subtitle.Render("Pending tasks")}
	if len(d.snapshot.Pending) == 0 {
		lines = append(lines, d.styles.Muted.Render("none"))
	}
	for _, t := range d.snapshot.Pending {
		lines = append(lines, fmt.Sprintf("%s  due %d  %s",
			shortID(t.ID.String()), t.DueStep, d.styles.Muted.Render(t.Target.String())))
	}
	return strings.Join(lines, "\n")
}

func (d *Dashboard) renderEvents() string {
	lines := []string{d.styles.Subtitle.Render("Events")}
	if len(d.events) == 0 {
		lines = append(lines, d.styles.Muted.Render("none yet"))
	}
	for _, e := range d.events {
		line := fmt.Sprintf("[step %d] %-11s %s", e.Step, e.Kind, e.Detail)
		lines = append(lines, d.eventStyle(e.Kind).Render(strings.TrimRight(line, " ")))
	}
	return strings.Join(lines, "\n")
}

func (d *Dashboard) eventStyle(kind domain.EventKind) lipgloss.Style {
	switch kind {
	case domain.EventSwapped, domain.EventFired:
		return d.styles.Success
	case domain.EventSkipped:
		return d.styles.Warning
	case domain.EventFailed, domain.EventHalted:
		return d.styles.Error
	default:
		return d.styles.Normal
	}
}

func (d *Dashboard) label(name, value string) string {
	return d.styles.Muted.Render(fmt.Sprintf("%-9s", name+":")) + " " + value
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
