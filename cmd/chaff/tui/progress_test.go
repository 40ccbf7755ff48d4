package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jamesainslie/chaff/pkg/chaff/generator"
)

func TestNewProgressModel(t *testing.T) {
	m := NewProgressModel("/tmp/decoys", 40)

	if m.target != "/tmp/decoys" {
		t.Errorf("target = %q, want /tmp/decoys", m.target)
	}
	if m.planned != 40 {
		t.Errorf("planned = %d, want 40", m.planned)
	}
	if m.done {
		t.Error("expected done to be false initially")
	}
	if got := m.Fraction(); got != 0 {
		t.Errorf("Fraction() = %v, want 0", got)
	}
}

func TestProgressModelFraction(t *testing.T) {
	m := NewProgressModel("/t", 10)
	m.SetProgress(generator.Progress{Written: 5, Failed: 1, Skipped: 1})
	if got := m.Fraction(); got != 0.7 {
		t.Errorf("Fraction() = %v, want 0.7", got)
	}

	m.SetProgress(generator.Progress{Written: 12})
	if got := m.Fraction(); got != 1 {
		t.Errorf("Fraction() = %v, want capped at 1", got)
	}

	empty := NewProgressModel("/t", 0)
	if got := empty.Fraction(); got != 1 {
		t.Errorf("Fraction() with nothing planned = %v, want 1", got)
	}
}

func TestProgressModelView(t *testing.T) {
	m := NewProgressModel("/tmp/decoys", 4)
	m.SetSize(120, 30)
	m.SetProgress(generator.Progress{
		Phase:     generator.PhaseWriting,
		Planned:   4,
		Written:   2,
		Bytes:     2048,
		Current:   "budget_2023_final.xlsx",
		StartedAt: time.Now(),
	})

	view := m.View()
	for _, want := range []string{"chaff", "budget_2023_final.xlsx", "Written", "2/4", "2.0 KiB", "50%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestProgressModelStatus(t *testing.T) {
	m := NewProgressModel("/t", 4)

	m.SetProgress(generator.Progress{AtFloor: true})
	if got := m.renderStatus(80); !strings.Contains(got, "floor") {
		t.Errorf("status at floor = %q", got)
	}

	m.SetProgress(generator.Progress{Phase: generator.PhaseMetadata, Metadata: 3})
	if got := m.renderStatus(80); !strings.Contains(got, "timestamps") {
		t.Errorf("metadata status = %q", got)
	}

	m.SetDone(errors.New("disk on fire"))
	if got := m.renderStatus(80); !strings.Contains(got, "disk on fire") {
		t.Errorf("error status = %q", got)
	}
}

func TestModelDoneQuits(t *testing.T) {
	m := NewModel(context.Background(), Options{Target: "/t", Planned: 1}, nil)
	want := &generator.Summary{Written: 1}

	_, cmd := m.Update(DoneMsg{Summary: want})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("DoneMsg should quit the program")
	}
	if m.summary != want || !m.finished {
		t.Error("summary not recorded")
	}
}

func TestModelCtrlCCancels(t *testing.T) {
	m := NewModel(context.Background(), Options{Target: "/t", Planned: 1}, nil)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	select {
	case <-m.ctx.Done():
	default:
		t.Error("ctrl+c should cancel the run context")
	}
}

func TestModelStartReportsProgress(t *testing.T) {
	run := func(ctx context.Context, onProgress func(generator.Progress)) (*generator.Summary, error) {
		onProgress(generator.Progress{Written: 1})
		return &generator.Summary{Written: 1}, nil
	}
	m := NewModel(context.Background(), Options{Target: "/t", Planned: 1}, run)

	done, ok := m.start()().(DoneMsg)
	if !ok || done.Summary.Written != 1 {
		t.Fatalf("start() = %#v", done)
	}
	msg := m.listen()()
	if p, ok := msg.(ProgressMsg); !ok || p.Written != 1 {
		t.Errorf("listen() = %#v, want the buffered snapshot", msg)
	}
	if msg := m.listen()(); msg != nil {
		t.Errorf("listen() after close = %#v, want nil", msg)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("/very/long/path/report.pdf", 12); got != "...eport.pdf" {
		t.Errorf("truncate long = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(75 * time.Second); got != "1:15" {
		t.Errorf("formatDuration = %q, want 1:15", got)
	}
}
