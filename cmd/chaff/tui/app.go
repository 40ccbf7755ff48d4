package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/chaff/pkg/chaff/generator"
)

// RunFunc performs a generation run, reporting through onProgress.
type RunFunc func(ctx context.Context, onProgress func(generator.Progress)) (*generator.Summary, error)

// Options describes the run being displayed.
type Options struct {
	Target  string
	Planned int
}

// Model drives a RunFunc and its ProgressModel.
type Model struct {
	view     ProgressModel
	run      RunFunc
	ctx      context.Context
	cancel   context.CancelFunc
	updates  chan generator.Progress
	summary  *generator.Summary
	err      error
	finished bool
}

// NewModel returns a model that will execute run when started.
func NewModel(ctx context.Context, opts Options, run RunFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		view:    NewProgressModel(opts.Target, opts.Planned),
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
		updates: make(chan generator.Progress, 64),
	}
}

// Init starts the spinner, the run and the progress listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.view.Init(), m.start(), m.listen())
}

// start runs the generator off the UI goroutine. Snapshots that find the
// channel full are dropped; a newer one follows.
func (m *Model) start() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		summary, err := m.run(m.ctx, func(p generator.Progress) {
			select {
			case updates <- p:
			default:
			}
		})
		close(updates)
		return DoneMsg{Summary: summary, Err: err}
	}
}

func (m *Model) listen() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		p, ok := <-updates
		if !ok {
			return nil
		}
		return ProgressMsg(p)
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.cancel()
		}
		return m, nil

	case ProgressMsg:
		var cmd tea.Cmd
		m.view, cmd = m.view.Update(msg)
		if m.finished {
			return m, cmd
		}
		return m, tea.Batch(cmd, m.listen())

	case DoneMsg:
		m.finished = true
		m.summary = msg.Summary
		m.err = msg.Err
		m.view, _ = m.view.Update(msg)
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.view, cmd = m.view.Update(msg)
	return m, cmd
}

// View renders the progress screen.
func (m *Model) View() string {
	return m.view.View()
}

// Run shows progress until run finishes. Ctrl+C or q cancels the run; its
// partial summary is still returned.
func Run(ctx context.Context, opts Options, run RunFunc) (*generator.Summary, error) {
	m := NewModel(ctx, opts, run)
	defer m.cancel()

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil && !m.finished {
		return nil, err
	}
	return m.summary, m.err
}
