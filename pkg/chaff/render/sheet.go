package render

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

var (
	sheetHeader = []string{"Date", "Department", "Item", "Quantity", "Amount", "Attachment"}
	sheetItems  = []string{"Licenses", "Travel", "Consulting", "Hardware", "Catering", "Training", "Hosting", "Office supplies", "Subscriptions"}
)

// rowSource yields ledger-like rows. The first rows name every embedded
// asset; later rows mention one now and then.
type rowSource struct {
	p      *prose
	rng    *rand.Rand
	start  time.Time
	embeds []Ref
	hints  []string
	n      int
}

func newRowSource(spec *types.FileSpec, c Content, rng *rand.Rand) *rowSource {
	return &rowSource{
		p:      newProse(spec.Language, rng),
		rng:    rng,
		start:  c.DocumentDate,
		embeds: byRole(c.References, types.EmbeddedAsset),
		hints:  c.HintLines,
	}
}

func (s *rowSource) next() []string {
	i := s.n
	s.n++

	item := s.p.pick(sheetItems)
	if i < len(s.hints) {
		item = s.hints[i]
	}
	attachment := ""
	switch {
	case i < len(s.embeds):
		attachment = s.embeds[i].Name
	case len(s.embeds) > 0 && s.rng.IntN(10) == 0:
		attachment = s.embeds[s.rng.IntN(len(s.embeds))].Name
	}
	date := s.start.AddDate(0, 0, i/4)
	return []string{
		date.Format("2006-01-02"),
		s.p.pick(departments),
		item,
		strconv.Itoa(1 + s.rng.IntN(40)),
		strconv.FormatFloat(float64(s.rng.IntN(5_000_000))/100, 'f', 2, 64),
		attachment,
	}
}

// minRows keeps every embed and hint in the output even for tiny targets.
func (s *rowSource) minRows() int {
	return max(len(s.embeds), len(s.hints), 1)
}

func renderCSV(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	src := newRowSource(spec, c, rng)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(sheetHeader); err != nil {
		return nil, err
	}
	for i := 0; i < src.minRows() || int64(buf.Len()) < spec.TargetSize; i++ {
		if err := w.Write(src.next()); err != nil {
			return nil, err
		}
		w.Flush()
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

const (
	xlsxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>
  <Override PartName="/xl/worksheets/sheet1.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>
  <Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`
	xlsxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`
	xlsxWorkbook = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <sheets><sheet name="%s" sheetId="1" r:id="rId1"/></sheets>
</workbook>`
	xlsxWorkbookRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>
</Relationships>`
)

func renderXlsx(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	src := newRowSource(spec, c, rng)
	sheetName := src.p.pick(departments)
	author := src.p.person()
	docTitle := title(spec)

	return fitTo(spec.TargetSize, func(fill int) ([]byte, error) {
		src.n = 0
		var sheet strings.Builder
		sheet.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
		sheet.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
		writeXlsxRow(&sheet, 1, sheetHeader)
		for r := 2; r-2 < src.minRows() || sheet.Len() < fill; r++ {
			writeXlsxRow(&sheet, r, src.next())
		}
		sheet.WriteString(`</sheetData></worksheet>`)

		stamp := c.DocumentDate.UTC().Format(time.RFC3339)
		entries := []zipEntry{
			{"[Content_Types].xml", []byte(xlsxContentTypes)},
			{"_rels/.rels", []byte(xlsxRootRels)},
			{"docProps/core.xml", []byte(fmt.Sprintf(coreProps, xmlEscape(docTitle), xmlEscape(author), stamp, stamp))},
			{"xl/workbook.xml", []byte(fmt.Sprintf(xlsxWorkbook, sheetName))},
			{"xl/_rels/workbook.xml.rels", []byte(xlsxWorkbookRels)},
			{"xl/worksheets/sheet1.xml", []byte(sheet.String())},
		}
		if len(src.embeds) > 0 {
			entries = append(entries, zipEntry{"xl/worksheets/_rels/sheet1.xml.rels", []byte(externalRels(src.embeds))})
		}
		return writeZip(entries, c.DocumentDate)
	})
}

func writeXlsxRow(b *strings.Builder, row int, cells []string) {
	fmt.Fprintf(b, `<row r="%d">`, row)
	for i, v := range cells {
		ref := fmt.Sprintf("%c%d", 'A'+i, row)
		if _, err := strconv.ParseFloat(v, 64); err == nil && row > 1 {
			fmt.Fprintf(b, `<c r="%s"><v>%s</v></c>`, ref, v)
			continue
		}
		fmt.Fprintf(b, `<c r="%s" t="inlineStr"><is><t>%s</t></is></c>`, ref, xmlEscape(v))
	}
	b.WriteString(`</row>`)
}
