package display

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// StateMsg carries a controller update into the bubbletea program.
type StateMsg State

// Controls is the part of the Controller the terminal UI drives.
type Controls interface {
	Start(ctx context.Context)
	Retry()
	Stop()
}

type keyMap struct {
	Retry key.Binding
	Quit  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Model is the bubbletea model behind `watch`.
type Model struct {
	ctx      context.Context
	controls Controls
	state    State
	keys     keyMap
}

// NewModel creates a model that starts controls when the program starts.
func NewModel(ctx context.Context, controls Controls) *Model {
	return &Model{
		ctx:      ctx,
		controls: controls,
		state:    State{Phase: PhaseLoading, IsInitialLoading: true},
		keys:     newKeyMap(),
	}
}

// Attach sets the controller after the program exists, since the
// controller's OnChange needs the program to send to.
func (m *Model) Attach(controls Controls) {
	m.controls = controls
}

func (m *Model) Init() tea.Cmd {
	return func() tea.Msg {
		m.controls.Start(m.ctx)
		return nil
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = State(msg)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.controls.Stop()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Retry):
			return m, func() tea.Msg {
				m.controls.Retry()
				return nil
			}
		}
	}

	return m, nil
}

func (m *Model) View() string {
	return Render(m.state) + "\n"
}
