package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var tableHeader = []string{"name", "path", "type", "encoding", "size", "age_bucket", "references"}

func tableRow(f FileInfo) []string {
	return []string{f.Name, f.Path, f.Type, f.Encoding, fmt.Sprintf("%d", f.Size), f.Bucket, strings.Join(f.References, ";")}
}

// CSVFormatter writes RFC 4180 CSV with a header row.
type CSVFormatter struct{}

// Format writes r to w.
func (f *CSVFormatter) Format(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableHeader); err != nil {
		return err
	}
	for _, file := range r.Files {
		if err := cw.Write(tableRow(file)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TSVFormatter writes tab separated values with a header row.
type TSVFormatter struct{}

// Format writes r to w.
func (f *TSVFormatter) Format(w io.Writer, r *Result) error {
	if _, err := fmt.Fprintln(w, strings.Join(tableHeader, "\t")); err != nil {
		return err
	}
	for _, file := range r.Files {
		if _, err := fmt.Fprintln(w, strings.Join(tableRow(file), "\t")); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Register("csv", func() Formatter { return &CSVFormatter{} })
	Register("tsv", func() Formatter { return &TSVFormatter{} })
}

var (
	_ Formatter = (*CSVFormatter)(nil)
	_ Formatter = (*TSVFormatter)(nil)
)
