package encoding

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/chaff/pkg/chaff/graph"
	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

func fastCodec() *Codec {
	return NewCodec(Options{KDFIterations: 1000, Compress: true, ArchiveWorkFactor: 10})
}

func payloads() map[string][]byte {
	rng := rand.New(rand.NewPCG(1, 2))
	noise := make([]byte, 64*1024)
	for i := range noise {
		noise[i] = byte(rng.Uint32())
	}
	return map[string][]byte{
		"empty":    {},
		"text":     []byte(strings.Repeat("Quarterly figures attached.\n", 400)),
		"binary":   noise,
		"pdf-like": append([]byte("%PDF-1.4\n\x00\xff\xfe"), noise[:777]...),
	}
}

func TestRoundTrip_EveryEncoding(t *testing.T) {
	t.Parallel()
	codec := fastCodec()
	const secret = "Tr0ub4dor3xK"

	for name, raw := range payloads() {
		for _, kind := range types.AllEncodings {
			t.Run(name+"/"+kind.String(), func(t *testing.T) {
				logical := "report_final.pdf"
				encoded, suffix, err := codec.Encode(logical, raw, kind, secret)
				require.NoError(t, err)
				assert.Equal(t, Suffix(kind), suffix)

				if kind == types.EncodingNone {
					assert.Equal(t, raw, encoded, "the none path must return renderer bytes untouched")
					return
				}

				decoded, original, err := codec.Decode(logical+suffix, encoded, secret)
				require.NoError(t, err)
				assert.Equal(t, logical, original)
				assert.True(t, bytes.Equal(raw, decoded), "decoded bytes differ")
			})
		}
	}
}

func TestDecode_WrongSecretIsDistinguishable(t *testing.T) {
	t.Parallel()
	codec := fastCodec()
	raw := []byte("budget 2024 draft, do not circulate")

	for _, kind := range []types.Encoding{types.EncodingEncrypted, types.EncodingArchived} {
		t.Run(kind.String(), func(t *testing.T) {
			encoded, suffix, err := codec.Encode("notes.txt", raw, kind, "correctHorse1")
			require.NoError(t, err)

			_, _, err = codec.Decode("notes.txt"+suffix, encoded, "batteryStaple2")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrWrongSecret), "got %v", err)
			assert.False(t, errors.Is(err, ErrCorrupt))

			_, _, err = codec.Decode("notes.txt"+suffix, encoded, "")
			assert.True(t, errors.Is(err, ErrSecretRequired))
		})
	}
}

func TestDecode_CorruptEnvelope(t *testing.T) {
	t.Parallel()
	_, _, err := fastCodec().Decode("x.txt.enc", []byte("not an envelope at all, really"), "whatever123")
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestDecode_UnknownSuffix(t *testing.T) {
	t.Parallel()
	_, _, err := fastCodec().Decode("holiday.jpg", []byte{1, 2, 3}, "")
	assert.True(t, errors.Is(err, ErrUnknownSuffix))
}

func TestDecode_PeelsLayersOutermostFirst(t *testing.T) {
	t.Parallel()
	codec := fastCodec()
	raw := []byte("layered")

	inner, _, err := codec.Encode("a.txt", raw, types.EncodingEncrypted, "layeredSecret9")
	require.NoError(t, err)
	outer, _, err := codec.Encode("a.txt.enc", inner, types.EncodingBase64, "")
	require.NoError(t, err)

	decoded, name, err := codec.Decode("a.txt.enc.b64", outer, "layeredSecret9")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", name)
	assert.Equal(t, raw, decoded)
}

func TestEncode_CompressionShrinksText(t *testing.T) {
	t.Parallel()
	raw := []byte(strings.Repeat("lorem ipsum ", 5000))

	packed, _, err := NewCodec(Options{KDFIterations: 10, Compress: true}).Encode("a.txt", raw, types.EncodingEncrypted, "compressMe12")
	require.NoError(t, err)
	plain, _, err := NewCodec(Options{KDFIterations: 10}).Encode("a.txt", raw, types.EncodingEncrypted, "compressMe12")
	require.NoError(t, err)

	assert.Less(t, len(packed), len(plain))
	assert.Equal(t, byte(flagLZ4), packed[5]&flagLZ4)
	assert.Equal(t, byte(0), plain[5]&flagLZ4)
}

func TestEncodeBase64_Wraps(t *testing.T) {
	t.Parallel()
	out := encodeBase64(bytes.Repeat([]byte{0xab}, 300))
	for _, line := range strings.Split(strings.TrimSuffix(string(out), "\n"), "\n") {
		assert.LessOrEqual(t, len(line), base64LineWidth)
	}
}

func TestSplitSuffix(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		kind types.Encoding
		base string
		ok   bool
	}{
		{"report.pdf.b64", types.EncodingBase64, "report.pdf", true},
		{"report.pdf.ENC", types.EncodingEncrypted, "report.pdf", true},
		{"data.csv.zip", types.EncodingArchived, "data.csv", true},
		{"photo.jpg", types.EncodingNone, "photo.jpg", false},
		{".zip", types.EncodingNone, ".zip", false},
	}
	for _, tt := range tests {
		kind, base, ok := SplitSuffix(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.kind, kind, tt.in)
		assert.Equal(t, tt.base, base, tt.in)
	}

	assert.True(t, NeedsSecret("a.txt.zip.b64"))
	assert.False(t, NeedsSecret("a.txt.b64"))
}

func TestSelector_Assign(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(9, 9))

	specs := make([]*types.FileSpec, 0, 600)
	for i := 0; i < 600; i++ {
		ft := []types.FileType{types.Image, types.Text, types.Email}[i%3]
		specs = append(specs, &types.FileSpec{ID: types.NodeID(i + 1), Type: ft, BaseName: "f", Ext: "txt"})
	}
	g := graph.New(specs)

	sel := &Selector{
		Weights: map[types.FileType][]float64{
			types.Image: {1, 0, 0, 0},
			types.Text:  {0.25, 0.25, 0.25, 0.25},
		},
		SecretLength: 4,
	}
	sel.Assign(g, rng)

	counts := make(map[types.Encoding]int)
	for _, n := range g.Nodes {
		switch n.Type {
		case types.Image, types.Email:
			assert.Equal(t, types.EncodingNone, n.Encoding)
		case types.Text:
			counts[n.Encoding]++
		}
		if n.Encoding.NeedsSecret() {
			assert.Len(t, n.Secret, MinSecretLength, "short lengths are raised to the minimum")
			for _, r := range n.Secret {
				assert.True(t, strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789", r))
			}
		} else {
			assert.Empty(t, n.Secret)
		}
		assert.True(t, strings.HasPrefix(FinalName(n), "f.txt"))
		assert.True(t, strings.HasSuffix(FinalName(n), Suffix(n.Encoding)))
	}
	for _, kind := range types.AllEncodings {
		assert.Greater(t, counts[kind], 20, "%s under-sampled", kind)
	}
}

func TestSelectorAssign_UnencodedExtensions(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(4, 2))

	var specs []*types.FileSpec
	for i := 0; i < 200; i++ {
		ext := []string{"pdf", "docx"}[i%2]
		specs = append(specs, &types.FileSpec{ID: types.NodeID(i + 1), Type: types.Document, BaseName: "d", Ext: ext})
	}
	g := graph.New(specs)
	sel := &Selector{
		Weights:   map[types.FileType][]float64{types.Document: {0, 1, 0, 0}},
		Unencoded: DefaultUnencoded,
	}
	sel.Assign(g, rng)

	for _, n := range g.Nodes {
		if n.Ext == "pdf" {
			assert.Equal(t, types.EncodingNone, n.Encoding)
		} else {
			assert.Equal(t, types.EncodingBase64, n.Encoding)
		}
	}
}
