package output

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// PlainFormatter writes an aligned, uncolored table for scripts and pipes.
type PlainFormatter struct{}

// Format writes r to w.
func (f *PlainFormatter) Format(w io.Writer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprintln(tw, "SIZE\tTYPE\tENCODING\tPATH"); err != nil {
		return err
	}
	for _, file := range r.Files {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", file.SizeHuman, file.Type, file.Encoding, file.Path); err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
}

var _ Formatter = (*PlainFormatter)(nil)
