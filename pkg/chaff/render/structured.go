package render

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"math/rand/v2"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

type record struct {
	ID         int       `json:"id" yaml:"id" xml:"id,attr"`
	Name       string    `json:"name" yaml:"name" xml:"name"`
	Department string    `json:"department" yaml:"department" xml:"department"`
	Owner      string    `json:"owner" yaml:"owner" xml:"owner"`
	Updated    time.Time `json:"updated" yaml:"updated" xml:"updated"`
	Amount     float64   `json:"amount" yaml:"amount" xml:"amount"`
	Tags       []string  `json:"tags,omitempty" yaml:"tags,omitempty" xml:"tag,omitempty"`
	Note       string    `json:"note,omitempty" yaml:"note,omitempty" xml:"note,omitempty"`
}

type dataset struct {
	XMLName    xml.Name `json:"-" yaml:"-" xml:"dataset"`
	Title      string   `json:"title" yaml:"title" xml:"title,attr"`
	Generated  string   `json:"generated" yaml:"generated" xml:"generated,attr"`
	Notes      []string `json:"notes,omitempty" yaml:"notes,omitempty" xml:"notes>note,omitempty"`
	References []string `json:"references,omitempty" yaml:"references,omitempty" xml:"references>ref,omitempty"`
	Records    []record `json:"records" yaml:"records" xml:"record"`
}

// approxRecordBytes seeds the record count; fitTo corrects it.
const approxRecordBytes = 220

func buildDataset(spec *types.FileSpec, c Content, rng *rand.Rand, fill int) dataset {
	p := newProse(spec.Language, rng)
	ds := dataset{
		Title:     title(spec),
		Generated: c.DocumentDate.UTC().Format(time.RFC3339),
		Notes:     c.HintLines,
	}
	for _, r := range c.References {
		ds.References = append(ds.References, r.Name)
	}
	n := max(1, fill/approxRecordBytes)
	ds.Records = make([]record, n)
	for i := range ds.Records {
		rec := record{
			ID:         i + 1,
			Name:       p.pick(sheetItems),
			Department: p.pick(departments),
			Owner:      p.person(),
			Updated:    c.DocumentDate.Add(time.Duration(i) * time.Hour).UTC(),
			Amount:     float64(rng.IntN(1_000_000)) / 100,
		}
		for j := rng.IntN(3); j > 0; j-- {
			rec.Tags = append(rec.Tags, p.pick(p.words))
		}
		if rng.IntN(4) == 0 {
			rec.Note = p.sentence()
		}
		ds.Records[i] = rec
	}
	return ds
}

func renderJSON(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	return fitTo(spec.TargetSize, func(fill int) ([]byte, error) {
		out, err := json.MarshalIndent(buildDataset(spec, c, rng, fill), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return append(out, '\n'), nil
	})
}

func renderYAML(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	return fitTo(spec.TargetSize, func(fill int) ([]byte, error) {
		out, err := yaml.Marshal(buildDataset(spec, c, rng, fill))
		if err != nil {
			return nil, fmt.Errorf("marshal yaml: %w", err)
		}
		return out, nil
	})
}

func renderXML(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	return fitTo(spec.TargetSize, func(fill int) ([]byte, error) {
		out, err := xml.MarshalIndent(buildDataset(spec, c, rng, fill), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal xml: %w", err)
		}
		return append([]byte(xml.Header), append(out, '\n')...), nil
	})
}
