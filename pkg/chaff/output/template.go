package output

import (
	"io"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

// TemplateFormatter renders a text/template against the Result. Besides
// the Result fields the template sees TotalSize and these functions:
//
//	{{date .Modified "2006-01-02"}}
//	{{bytes .Size}}
type TemplateFormatter struct {
	mu       sync.Mutex
	text     string
	template *template.Template
}

// NewTemplateFormatter returns a formatter for text.
func NewTemplateFormatter(text string) *TemplateFormatter {
	return &TemplateFormatter{text: text}
}

// SetTemplate replaces the template text.
func (f *TemplateFormatter) SetTemplate(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},
		"bytes": func(size int64) string {
			return humanize.IBytes(uint64(max(size, 0)))
		},
	}
}

// Format writes r to w.
func (f *TemplateFormatter) Format(w io.Writer, r *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.text)
		if err != nil {
			return err
		}
		f.template = tmpl
	}

	return f.template.Execute(w, struct {
		*Result
		TotalSize int64
	}{r, r.TotalSize()})
}

const defaultTemplate = `{{range .Files}}{{.SizeHuman}}	{{.Encoding}}	{{.Path}}
{{end}}`

func init() {
	Register("template", func() Formatter { return NewTemplateFormatter(defaultTemplate) })
}

var _ Formatter = (*TemplateFormatter)(nil)
