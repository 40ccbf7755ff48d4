package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

const (
	pdfLinesPerPage = 48
	pdfLineWidth    = 90
)

func renderPDF(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	p := newProse(spec.Language, rng)
	docTitle := title(spec)

	heading := []string{docTitle, c.DocumentDate.Format(dateLayout), ""}
	for _, r := range byRole(c.References, types.EmbeddedAsset) {
		heading = append(heading, "Figure: "+r.Name)
	}
	heading = append(heading, c.HintLines...)

	return fitTo(spec.TargetSize, func(fill int) ([]byte, error) {
		lines := append([]string(nil), heading...)
		for _, para := range p.paragraphs(fill) {
			lines = append(lines, "")
			lines = append(lines, wrap(para, pdfLineWidth)...)
		}
		return buildPDF(docTitle, c.DocumentDate, lines), nil
	})
}

// buildPDF lays lines out on Helvetica pages with uncompressed content
// streams, so every line is present literally in the output.
func buildPDF(docTitle string, date time.Time, lines []string) []byte {
	var pages [][]string
	for len(lines) > pdfLinesPerPage {
		pages = append(pages, lines[:pdfLinesPerPage])
		lines = lines[pdfLinesPerPage:]
	}
	pages = append(pages, lines)

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		fmt.Sprintf("<< /Title (%s) /CreationDate (D:%sZ) >>", escapePDF(docTitle), date.UTC().Format("20060102150405")),
	}
	for i, page := range pages {
		var content strings.Builder
		content.WriteString("BT\n/F1 11 Tf\n72 760 Td\n")
		for _, line := range page {
			if line != "" {
				fmt.Fprintf(&content, "(%s) Tj\n", escapePDF(line))
			}
			content.WriteString("0 -14 Td\n")
		}
		content.WriteString("ET")
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xE2\xE3\xCF\xD3\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\n", len(objects)+1)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefPos)
	return buf.Bytes()
}

func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	return append(lines, current)
}

var pdfEscaper = strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)

func escapePDF(s string) string { return pdfEscaper.Replace(s) }

type docxText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type docxRun struct {
	Text docxText `xml:"w:t"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"w:r"`
}

type docxDocument struct {
	XMLName    xml.Name        `xml:"w:document"`
	Xmlns      string          `xml:"xmlns:w,attr"`
	XmlnsR     string          `xml:"xmlns:r,attr"`
	Paragraphs []docxParagraph `xml:"w:body>w:p"`
}

func paragraph(text string) docxParagraph {
	return docxParagraph{Runs: []docxRun{{Text: docxText{Space: "preserve", Text: text}}}}
}

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
</Types>`
	docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
  <Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
</Relationships>`
	coreProps = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <dc:title>%s</dc:title>
  <dc:creator>%s</dc:creator>
  <dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>
  <dcterms:modified xsi:type="dcterms:W3CDTF">%s</dcterms:modified>
</cp:coreProperties>`
)

// externalRels links each embedded asset as an external image relationship.
func externalRels(refs []Ref) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` + "\n")
	for i, r := range refs {
		fmt.Fprintf(&b, `  <Relationship Id="rIdAsset%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="%s" TargetMode="External"/>`+"\n",
			i+1, xmlEscape(r.Name))
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func renderDocx(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	p := newProse(spec.Language, rng)
	docTitle := title(spec)
	author := p.person()
	embeds := byRole(c.References, types.EmbeddedAsset)

	return fitTo(spec.TargetSize, func(fill int) ([]byte, error) {
		doc := docxDocument{
			Xmlns:  "http://schemas.openxmlformats.org/wordprocessingml/2006/main",
			XmlnsR: "http://schemas.openxmlformats.org/officeDocument/2006/relationships",
		}
		doc.Paragraphs = append(doc.Paragraphs, paragraph(docTitle), paragraph(c.DocumentDate.Format(dateLayout)))
		for _, r := range embeds {
			doc.Paragraphs = append(doc.Paragraphs, paragraph("Figure: "+r.Name))
		}
		for _, line := range c.HintLines {
			doc.Paragraphs = append(doc.Paragraphs, paragraph(line))
		}
		for _, para := range p.paragraphs(fill) {
			doc.Paragraphs = append(doc.Paragraphs, paragraph(para))
		}

		body, err := xml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal document: %w", err)
		}
		stamp := c.DocumentDate.UTC().Format(time.RFC3339)
		entries := []zipEntry{
			{"[Content_Types].xml", []byte(docxContentTypes)},
			{"_rels/.rels", []byte(docxRootRels)},
			{"docProps/core.xml", []byte(fmt.Sprintf(coreProps, xmlEscape(docTitle), xmlEscape(author), stamp, stamp))},
			{"word/document.xml", append([]byte(xml.Header), body...)},
		}
		if len(embeds) > 0 {
			entries = append(entries, zipEntry{"word/_rels/document.xml.rels", []byte(externalRels(embeds))})
		}
		return writeZip(entries, c.DocumentDate)
	})
}

type zipEntry struct {
	Name string
	Body []byte
}

// writeZip stores entries uncompressed so text stays searchable and the
// archive size tracks its content.
func writeZip(entries []zipEntry, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Store, Modified: modified})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.Body); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
