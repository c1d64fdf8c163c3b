package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/waymark-dev/waymark/internal/engine"
	"github.com/waymark-dev/waymark/internal/instance"
	"github.com/waymark-dev/waymark/internal/template"
)

const refreshInterval = 2 * time.Second

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#DA702C"))
	stepStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	agentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E8B57")).Bold(true)
	awaitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type refreshMsg struct{}

type snapshotMsg struct {
	template string
	snap     engine.Snapshot
	context  map[string]string
	err      error
}

// WatchModel polls a workflow instance and renders its position live.
type WatchModel struct {
	manager    *instance.Manager
	instanceID string

	template string
	snap     engine.Snapshot
	context  map[string]string
	err      error
	loaded   bool
}

// NewWatchModel builds a watch view for the given instance.
func NewWatchModel(manager *instance.Manager, instanceID string) *WatchModel {
	return &WatchModel{manager: manager, instanceID: instanceID}
}

func (m *WatchModel) Init() tea.Cmd {
	return m.refresh()
}

func (m *WatchModel) refresh() tea.Cmd {
	return func() tea.Msg {
		name, snap, err := m.manager.Status(m.instanceID)
		if err != nil {
			return snapshotMsg{err: err}
		}
		ctx, err := m.manager.Context(m.instanceID)
		if err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{template: name, snap: snap, context: ctx}
	}
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}
	case refreshMsg:
		return m, m.refresh()
	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.template = msg.template
			m.snap = msg.snap
			m.context = msg.context
			m.loaded = true
		}
		return m, scheduleRefresh()
	}
	return m, nil
}

func (m *WatchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Waymark"))
	if m.template != "" {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  %s (%s)", m.template, m.instanceID)))
	}
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
		return b.String()
	}
	if !m.loaded {
		b.WriteString(mutedStyle.Render("loading..."))
		b.WriteString("\n")
		return b.String()
	}

	snap := m.snap
	if snap.Status == engine.StatusComplete {
		b.WriteString(doneStyle.Render("✓ complete"))
		b.WriteString("\n")
	} else {
		b.WriteString(stepStyle.Render(fmt.Sprintf("step %d/%d: %s", snap.Step.Current, snap.Step.Total, snap.StepID)))
		b.WriteString("\n")
		switch {
		case snap.AwaitingTasks:
			b.WriteString(awaitingStyle.Render("  awaiting tasks"))
			b.WriteString("\n")
		case snap.StepType == template.StepLoop:
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  task %d/%d: %s", snap.Task.Current, snap.Task.Total, snap.TaskTitle)))
			b.WriteString("\n")
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  sub-step %d/%d: %s", snap.SubStep.Current, snap.SubStep.Total, snap.SubStepID)))
			b.WriteString("\n")
		}
		if snap.AgentName != "" {
			b.WriteString(agentStyle.Render("  agent: " + snap.AgentName))
			b.WriteString("\n")
		}
	}

	if len(m.context) > 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(fmt.Sprintf("recorded outputs: %d", len(m.context))))
		b.WriteString("\n")
		keys := make([]string, 0, len(m.context))
		for k := range m.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		shown := keys
		if len(shown) > 8 {
			shown = shown[len(shown)-8:]
		}
		for _, k := range shown {
			b.WriteString(mutedStyle.Render("  ✓ " + k))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the watch TUI and blocks until the user quits.
func Run(manager *instance.Manager, instanceID string) error {
	p := tea.NewProgram(NewWatchModel(manager, instanceID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
