package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/chaff/pkg/chaff/generator"
)

// ProgressMsg carries a generator snapshot.
type ProgressMsg generator.Progress

// DoneMsg ends the run.
type DoneMsg struct {
	Summary *generator.Summary
	Err     error
}

// ProgressModel renders one run: header, current file, progress bar and
// stat boxes.
type ProgressModel struct {
	target  string
	planned int

	progress generator.Progress
	spinner  spinner.Model
	bar      progress.Model
	started  time.Time

	width  int
	height int

	done bool
	err  error
}

// NewProgressModel returns a model for a run of planned files into target.
func NewProgressModel(target string, planned int) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	bar := progress.New(progress.WithGradient("#7D56F4", "#00D9FF"), progress.WithoutPercentage())

	return ProgressModel{
		target:  target,
		planned: planned,
		spinner: s,
		bar:     bar,
		started: time.Now(),
		width:   80,
		height:  24,
	}
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles size, progress, completion and spinner ticks.
func (m ProgressModel) Update(msg tea.Msg) (ProgressModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case ProgressMsg:
		m.SetProgress(generator.Progress(msg))
		return m, nil

	case DoneMsg:
		m.SetDone(msg.Err)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// SetSize records the terminal size.
func (m *ProgressModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetProgress stores the latest snapshot.
func (m *ProgressModel) SetProgress(p generator.Progress) {
	m.progress = p
	if !p.StartedAt.IsZero() {
		m.started = p.StartedAt
	}
}

// SetDone marks the run finished.
func (m *ProgressModel) SetDone(err error) {
	m.done = true
	m.err = err
}

// Fraction is the share of planned files that reached a final outcome.
func (m ProgressModel) Fraction() float64 {
	if m.planned == 0 {
		return 1
	}
	finished := m.progress.Written + m.progress.Failed + m.progress.Skipped
	return min(float64(finished)/float64(m.planned), 1)
}

// View renders the model.
func (m ProgressModel) View() string {
	contentWidth := max(m.width-4, 40)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")
	b.WriteString("  " + m.renderStatus(contentWidth))
	b.WriteString("\n\n")

	m.bar.Width = max(contentWidth-12, 10)
	fmt.Fprintf(&b, "  %s %3.0f%%", m.bar.ViewAs(m.Fraction()), 100*m.Fraction())
	b.WriteString("\n\n")
	b.WriteString(m.renderStats(contentWidth))
	b.WriteString("\n")

	return outerBoxStyle.Width(max(m.width-2, 0)).Render(b.String())
}

func (m ProgressModel) renderHeader(width int) string {
	title := titleStyle.Render("  chaff") + mutedTextStyle.Render(" -> "+truncate(m.target, width/2))
	hint := mutedTextStyle.Render("[Ctrl+C to stop]")
	spacing := max(width-lipgloss.Width(title)-lipgloss.Width(hint), 1)
	return title + strings.Repeat(" ", spacing) + hint
}

func (m ProgressModel) renderStatus(width int) string {
	switch {
	case m.done && m.err != nil:
		return errorTextStyle.Render(fmt.Sprintf("Error: %v", m.err))
	case m.done:
		return successTextStyle.Render("Generation complete")
	case m.progress.AtFloor:
		return warningTextStyle.Render("Free space floor reached, finishing in-flight files")
	}

	switch m.progress.Phase {
	case generator.PhaseMetadata:
		return fmt.Sprintf("%s Randomizing timestamps (%d)", m.spinner.View(), m.progress.Metadata)
	case generator.PhaseCleanup:
		return fmt.Sprintf("%s Removing generated files", m.spinner.View())
	default:
		current := m.progress.Current
		if current == "" {
			current = "starting"
		}
		return fmt.Sprintf("%s Writing: %s", m.spinner.View(), truncate(current, width-20))
	}
}

func (m ProgressModel) renderStats(totalWidth int) string {
	boxWidth := max((totalWidth-12)/5, 12)

	free := "-"
	if m.progress.Free > 0 {
		free = humanize.IBytes(uint64(m.progress.Free))
	}
	boxes := []string{
		m.renderStatBox("Written", fmt.Sprintf("%s/%s", humanize.Comma(m.progress.Written), humanize.Comma(int64(m.planned))), boxWidth),
		m.renderStatBox("Failed", humanize.Comma(m.progress.Failed+m.progress.Skipped), boxWidth),
		m.renderStatBox("Bytes", humanize.IBytes(uint64(max(m.progress.Bytes, 0))), boxWidth),
		m.renderStatBox("Free", free, boxWidth),
		m.renderStatBox("Time", formatDuration(time.Since(m.started)), boxWidth),
	}

	parts := []string{"  "}
	for i, box := range boxes {
		if i > 0 {
			parts = append(parts, " ")
		}
		parts = append(parts, box)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m ProgressModel) renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		center(statsLabelStyle.Render(label), width-4),
		center(statsValueStyle.Render(value), width-4))
	return statsBoxStyle.Width(width).Render(content)
}

// formatDuration formats d as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}
