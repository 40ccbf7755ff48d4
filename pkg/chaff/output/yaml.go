package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter writes the same document as JSONFormatter, in YAML.
type YAMLFormatter struct{}

// Format writes r to w.
func (f *YAMLFormatter) Format(w io.Writer, r *Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Result: *r, TotalSize: r.TotalSize(), Duration: formatDurationString(r.Stats.Duration)}); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	Register("yaml", func() Formatter { return &YAMLFormatter{} })
}

var _ Formatter = (*YAMLFormatter)(nil)
