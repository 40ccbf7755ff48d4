package output

import "io"

// PathsFormatter writes one path per line.
type PathsFormatter struct{}

// Format writes r's paths to w.
func (f *PathsFormatter) Format(w io.Writer, r *Result) error {
	return writePaths(w, r, '\n')
}

// NullFormatter writes NUL terminated paths for xargs -0.
type NullFormatter struct{}

// Format writes r's paths to w.
func (f *NullFormatter) Format(w io.Writer, r *Result) error {
	return writePaths(w, r, 0)
}

func writePaths(w io.Writer, r *Result, sep byte) error {
	for _, file := range r.Files {
		if _, err := io.WriteString(w, file.Path+string(sep)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Register("paths", func() Formatter { return &PathsFormatter{} })
	Register("null", func() Formatter { return &NullFormatter{} })
}

var (
	_ Formatter = (*PathsFormatter)(nil)
	_ Formatter = (*NullFormatter)(nil)
)
