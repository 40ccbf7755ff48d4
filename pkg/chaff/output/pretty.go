package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// maxPrettyRows bounds the file table; the rest is summarized in the footer.
const maxPrettyRows = 25

// PrettyFormatter writes a styled report for terminals.
type PrettyFormatter struct{}

// Format writes r to w.
func (f *PrettyFormatter) Format(w io.Writer, r *Result) error {
	var sb strings.Builder
	sb.WriteString(f.formatHeader(r))
	sb.WriteString("\n")
	sb.WriteString(f.formatTable(r))
	sb.WriteString(f.formatFooter(r))
	sb.WriteString("\n")
	if len(r.Warnings) > 0 {
		sb.WriteString(formatList("Warnings:", r.Warnings, WarningStyle))
	}
	if len(r.Errors) > 0 {
		sb.WriteString(formatList("Errors:", r.Errors, ErrorStyle))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	title := "Chaff run"
	if r.DryRun {
		title = "Chaff plan (dry run)"
	}
	lines = append(lines, TitleStyle.Render(title))
	lines = append(lines, field("Target:", ValueStyle.Render(r.Target)))
	lines = append(lines, strings.Join([]string{
		field("Run:", MutedStyle.Render(shortID(r.RunID))),
		field("Seed:", MutedStyle.Render(fmt.Sprintf("%d", r.Seed))),
	}, "  "))

	var status []string
	if r.DryRun {
		status = append(status, field("Planned:", ValueStyle.Render(fmt.Sprintf("%d files", r.Stats.Planned))))
	} else {
		status = append(status, field("Written:", SuccessStyle.Render(fmt.Sprintf("%d/%d", r.Stats.Written, r.Stats.Planned))))
		if r.Stats.Failed > 0 {
			status = append(status, field("Failed:", ErrorStyle.Render(fmt.Sprintf("%d", r.Stats.Failed))))
		}
		if r.Stats.Skipped > 0 {
			status = append(status, field("Skipped:", WarningStyle.Render(fmt.Sprintf("%d", r.Stats.Skipped))))
		}
		if r.Stats.Duration > 0 {
			status = append(status, field("Took:", ValueStyle.Render(formatDuration(r.Stats.Duration))))
		}
	}
	lines = append(lines, strings.Join(status, "  "))

	if r.StoppedAtFloor {
		lines = append(lines, WarningStyle.Bold(true).Render("Stopped at the free space floor"))
	}
	if r.Cancelled {
		lines = append(lines, WarningStyle.Bold(true).Render("Run cancelled"))
	}
	if r.Stats.Removed > 0 {
		lines = append(lines, MutedStyle.Render(fmt.Sprintf("%d files removed after completion", r.Stats.Removed)))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Files) == 0 {
		return MutedStyle.Render("  No files") + "\n"
	}

	rows := r.Files
	if len(rows) > maxPrettyRows {
		rows = rows[:maxPrettyRows]
	}

	sizeWidth, typeWidth, encWidth := 8, 4, 8
	for _, file := range rows {
		sizeWidth = max(sizeWidth, len(file.SizeHuman))
		typeWidth = max(typeWidth, len(file.Type))
		encWidth = max(encWidth, len(file.Encoding))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		TableHeaderStyle.Render(padRight("TYPE", typeWidth)),
		TableHeaderStyle.Render(padRight("ENCODING", encWidth)),
		TableHeaderStyle.Render("NAME"))

	for _, file := range rows {
		encStyle, ok := EncodingStyles[file.Encoding]
		if !ok {
			encStyle = ValueStyle
		}
		name := PathStyle.Render(file.Name)
		if len(file.References) > 0 {
			name += MutedStyle.Render(fmt.Sprintf(" -> %d", len(file.References)))
		}
		fmt.Fprintf(&sb, "  %s  %s  %s  %s\n",
			SizeStyle.Render(padLeft(file.SizeHuman, sizeWidth)),
			LabelStyle.Render(padRight(file.Type, typeWidth)),
			encStyle.Render(padRight(file.Encoding, encWidth)),
			name)
	}
	if hidden := len(r.Files) - len(rows); hidden > 0 {
		sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more", hidden)))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	parts := []string{
		field("Files:", ValueStyle.Render(fmt.Sprintf("%d", len(r.Files)))),
		field("Total:", SizeStyle.Render(humanize.IBytes(uint64(max(r.Stats.Bytes, 0))))),
		field("Links:", ValueStyle.Render(fmt.Sprintf("%d", r.Stats.Edges))),
	}
	lines := []string{strings.Join(parts, "  ")}
	if len(r.Stats.ByType) > 0 {
		lines = append(lines, field("Types:", MutedStyle.Render(counts(r.Stats.ByType))))
	}
	if len(r.Stats.ByEncoding) > 0 {
		lines = append(lines, field("Encodings:", MutedStyle.Render(counts(r.Stats.ByEncoding))))
	}
	return FooterBox.Render(strings.Join(lines, "\n"))
}

func formatList(title string, items []string, style lipgloss.Style) string {
	var sb strings.Builder
	sb.WriteString(style.Bold(true).Render(title))
	sb.WriteString("\n")
	for _, item := range items {
		sb.WriteString(style.Render("  " + item))
		sb.WriteString("\n")
	}
	return sb.String()
}

func field(label, value string) string {
	return LabelStyle.Render(label) + " " + value
}

// counts renders a count map as "a=1 b=2" in key order.
func counts(m map[string]int) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[k]))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration renders d for people: 340ms, 4.2s, 3m 5s, 1h 2m.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// formatDurationString is formatDuration for serialized output, empty for
// zero.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

var _ Formatter = (*PrettyFormatter)(nil)
