package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes the Result as one indented document.
type JSONFormatter struct{}

// Format writes r to w.
func (f *JSONFormatter) Format(w io.Writer, r *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{Result: *r, TotalSize: r.TotalSize(), Duration: formatDurationString(r.Stats.Duration)})
}

// document adds computed fields to the serialized Result.
type document struct {
	Result    `yaml:",inline"`
	TotalSize int64  `json:"total_size" yaml:"total_size"`
	Duration  string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// JSONLFormatter writes one compact JSON object per file, for jq and other
// stream tools.
type JSONLFormatter struct{}

// Format writes r's files to w.
func (f *JSONLFormatter) Format(w io.Writer, r *Result) error {
	enc := json.NewEncoder(w)
	for _, file := range r.Files {
		if err := enc.Encode(file); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
	Register("jsonl", func() Formatter { return &JSONLFormatter{} })
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*JSONLFormatter)(nil)
)
