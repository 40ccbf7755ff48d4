package render

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

var docDate = time.Date(2022, 3, 14, 9, 26, 53, 0, time.UTC)

func node(ext string, ft types.FileType, size int64) *types.FileSpec {
	return &types.FileSpec{ID: 7, Type: ft, Ext: ext, TargetSize: size, Language: "en", BaseName: "quarterly_report_final"}
}

func TestRender_SizeWithinTolerance(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ext  string
		ft   types.FileType
		band float64
	}{
		{"txt", types.Text, Tolerance},
		{"md", types.Text, Tolerance},
		{"eml", types.Email, Tolerance},
		{"pdf", types.Document, Tolerance},
		{"docx", types.Document, Tolerance},
		{"csv", types.Spreadsheet, Tolerance},
		{"xlsx", types.Spreadsheet, Tolerance},
		{"json", types.Structured, Tolerance},
		{"yaml", types.Structured, Tolerance},
		{"xml", types.Structured, Tolerance},
		{"png", types.Image, 0.15},
		{"jpg", types.Image, 0.15},
	}
	set := NewSet(42)
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			target := 96 * types.KiB
			out, err := set.Render(node(tt.ext, tt.ft, target), Content{DocumentDate: docDate})
			require.NoError(t, err)
			assert.InDelta(t, float64(target), float64(len(out)), float64(target)*tt.band)
		})
	}
}

func TestRender_TextExactSize(t *testing.T) {
	t.Parallel()
	out, err := NewSet(1).Render(node("txt", types.Text, 20_000), Content{DocumentDate: docDate})
	require.NoError(t, err)
	assert.Len(t, out, 20_000)
}

func TestRender_Deterministic(t *testing.T) {
	t.Parallel()
	c := Content{DocumentDate: docDate, HintLines: []string{"Decryption key: Ab3dEf7hJk"}}
	for _, ext := range []string{"eml", "pdf", "docx", "png", "json"} {
		ft := map[string]types.FileType{"eml": types.Email, "pdf": types.Document, "docx": types.Document, "png": types.Image, "json": types.Structured}[ext]
		a, err := NewSet(9).Render(node(ext, ft, 8*types.KiB), c)
		require.NoError(t, err)
		b, err := NewSet(9).Render(node(ext, ft, 8*types.KiB), c)
		require.NoError(t, err)
		other, err := NewSet(10).Render(node(ext, ft, 8*types.KiB), c)
		require.NoError(t, err)

		assert.Equal(t, a, b, ext)
		assert.NotEqual(t, a, other, ext)
	}
}

func TestRender_ReferencesAndHintsAppearVerbatim(t *testing.T) {
	t.Parallel()
	const secret = "Qz7Lm2Pw9Xc4"
	hint := "Decryption key: " + secret

	tests := []struct {
		name string
		ext  string
		ft   types.FileType
		refs []Ref
	}{
		{"email", "eml", types.Email, []Ref{
			{Name: "budget_2021.xlsx.b64", Role: types.Attachment, Type: types.Spreadsheet},
			{Name: "site_photo.png", Role: types.Attachment, Type: types.Image},
		}},
		{"pdf", "pdf", types.Document, []Ref{{Name: "chart.png", Role: types.EmbeddedAsset, Type: types.Image}}},
		{"docx", "docx", types.Document, []Ref{{Name: "chart.jpg", Role: types.EmbeddedAsset, Type: types.Image}}},
		{"text", "txt", types.Text, nil},
		{"markdown", "md", types.Text, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out, err := NewSet(3).Render(node(tt.ext, tt.ft, 32*types.KiB), Content{
				References:   tt.refs,
				HintLines:    []string{hint},
				DocumentDate: docDate,
			})
			require.NoError(t, err)
			assert.True(t, bytes.Contains(out, []byte(secret)), "secret missing")
			for _, r := range tt.refs {
				assert.True(t, bytes.Contains(out, []byte(r.Name)), "reference %s missing", r.Name)
			}
		})
	}
}

func TestRender_SpreadsheetsNameEmbeds(t *testing.T) {
	t.Parallel()
	refs := []Ref{
		{Name: "logo.png", Role: types.EmbeddedAsset, Type: types.Image},
		{Name: "scan_2020.jpg.enc", Role: types.EmbeddedAsset, Type: types.Image},
	}
	for _, ext := range []string{"csv", "xlsx"} {
		out, err := NewSet(5).Render(node(ext, types.Spreadsheet, 300), Content{References: refs, DocumentDate: docDate})
		require.NoError(t, err)
		for _, r := range refs {
			assert.True(t, bytes.Contains(out, []byte(r.Name)), "%s: %s missing", ext, r.Name)
		}
	}
}

func TestRenderEmail_GroupsAttachments(t *testing.T) {
	t.Parallel()
	out, err := NewSet(11).Render(node("eml", types.Email, 4*types.KiB), Content{
		References: []Ref{
			{Name: "contract.pdf", Role: types.Attachment, Type: types.Document},
			{Name: "photo.jpg", Role: types.Attachment, Type: types.Image},
			{Name: "export.json", Role: types.Attachment, Type: types.Structured},
		},
		HintLines:    []string{"Archive password: Zx81Yw72Vu"},
		DocumentDate: docDate,
	})
	require.NoError(t, err)
	body := string(out)

	assert.True(t, strings.HasPrefix(body, "From: "))
	assert.Contains(t, body, "Date: Mon, 14 Mar 2022 09:26:53 +0000")
	docs := strings.Index(body, "Documents:")
	visual := strings.Index(body, "Visual Materials:")
	data := strings.Index(body, "Data Files:")
	notes := strings.Index(body, "Security Notes:")
	assert.True(t, docs > 0 && docs < visual && visual < data && data < notes, "headings out of order")
	closing := strings.LastIndex(body, "\nBest regards,\n")
	assert.Greater(t, closing, notes)
	assert.Less(t, len(body)-closing, 64, "signature should close the message")
}

func TestRenderText_SyntheticNote(t *testing.T) {
	t.Parallel()
	spec := node("txt", types.Text, 512)
	spec.Synthetic = true
	out, err := NewSet(2).Render(spec, Content{HintLines: []string{"Backup access code: Pp00Qq11Rr"}, DocumentDate: docDate})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "Reminder\n\nBackup access code: Pp00Qq11Rr\n"))
}

func TestRender_ContainersAreWellFormed(t *testing.T) {
	t.Parallel()
	set := NewSet(8)
	c := Content{DocumentDate: docDate}

	for ext, part := range map[string]string{"docx": "word/document.xml", "xlsx": "xl/worksheets/sheet1.xml"} {
		ft := types.Document
		if ext == "xlsx" {
			ft = types.Spreadsheet
		}
		out, err := set.Render(node(ext, ft, 16*types.KiB), c)
		require.NoError(t, err)
		zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
		require.NoError(t, err)
		var names []string
		for _, f := range zr.File {
			names = append(names, f.Name)
			assert.Equal(t, zip.Store, f.Method)
		}
		assert.Contains(t, names, part)
	}

	for _, ext := range []string{"png", "jpg"} {
		out, err := set.Render(node(ext, types.Image, 16*types.KiB), c)
		require.NoError(t, err)
		_, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Contains(t, []string{"png", "jpeg"}, format)
	}

	out, err := set.Render(node("json", types.Structured, 8*types.KiB), c)
	require.NoError(t, err)
	assert.True(t, json.Valid(out))

	out, err = set.Render(node("yaml", types.Structured, 8*types.KiB), c)
	require.NoError(t, err)
	var ds dataset
	require.NoError(t, yaml.Unmarshal(out, &ds))
	assert.NotEmpty(t, ds.Records)

	out, err = set.Render(node("pdf", types.Document, 16*types.KiB), c)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-1.4")))
	assert.True(t, bytes.HasSuffix(out, []byte("%%EOF\n")))
}

func TestRender_UnknownExtension(t *testing.T) {
	t.Parallel()
	_, err := NewSet(1).Render(node("bin", types.Text, 10), Content{})
	assert.True(t, errors.Is(err, types.ErrRender))
}

func TestRender_RegisterOverrides(t *testing.T) {
	t.Parallel()
	set := NewSet(1)
	set.Register("TXT", func(*types.FileSpec, Content, *rand.Rand) ([]byte, error) {
		return nil, errors.New("boom")
	})
	_, err := set.Render(node("txt", types.Text, 10), Content{})
	assert.True(t, errors.Is(err, types.ErrRender))
	assert.Contains(t, err.Error(), "boom")
}

func TestWithin(t *testing.T) {
	t.Parallel()
	assert.True(t, Within(1000, 1000))
	assert.True(t, Within(1050, 1000))
	assert.True(t, Within(950, 1000))
	assert.False(t, Within(1051, 1000))
	assert.False(t, Within(0, 1000))
}
