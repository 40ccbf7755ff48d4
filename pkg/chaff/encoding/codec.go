package encoding

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// Decode errors.
var (
	ErrWrongSecret    = errors.New("wrong secret")
	ErrSecretRequired = errors.New("secret required")
	ErrUnknownSuffix  = errors.New("no known encoding suffix")
	ErrCorrupt        = errors.New("corrupt payload")
)

// Options tune the secret-bearing encodings.
type Options struct {
	// KDFIterations is the PBKDF2 round count for the encrypted envelope.
	KDFIterations int

	// Compress LZ4-compresses encrypted payloads when that makes them
	// smaller.
	Compress bool

	// ArchiveWorkFactor is the scrypt log2 work factor for archive entries.
	ArchiveWorkFactor int
}

// DefaultOptions returns production settings.
func DefaultOptions() Options {
	return Options{KDFIterations: 100000, Compress: true, ArchiveWorkFactor: 15}
}

// Codec applies and inverts encodings.
type Codec struct {
	opts Options
}

// NewCodec returns a codec; zero option fields take their defaults.
func NewCodec(opts Options) *Codec {
	def := DefaultOptions()
	if opts.KDFIterations <= 0 {
		opts.KDFIterations = def.KDFIterations
	}
	if opts.ArchiveWorkFactor <= 0 {
		opts.ArchiveWorkFactor = def.ArchiveWorkFactor
	}
	return &Codec{opts: opts}
}

// Encode wraps raw according to kind and returns the bytes to write plus
// the suffix to append to logicalName. The none path returns raw itself.
func (c *Codec) Encode(logicalName string, raw []byte, kind types.Encoding, secret string) ([]byte, string, error) {
	switch kind {
	case types.EncodingNone:
		return raw, "", nil
	case types.EncodingBase64:
		return encodeBase64(raw), SuffixBase64, nil
	case types.EncodingEncrypted:
		if secret == "" {
			return nil, "", ErrSecretRequired
		}
		out, err := seal(raw, secret, c.opts)
		if err != nil {
			return nil, "", err
		}
		return out, SuffixEncrypted, nil
	case types.EncodingArchived:
		if secret == "" {
			return nil, "", ErrSecretRequired
		}
		out, err := archive(logicalName, raw, secret, c.opts.ArchiveWorkFactor)
		if err != nil {
			return nil, "", err
		}
		return out, SuffixArchived, nil
	default:
		return nil, "", fmt.Errorf("unsupported encoding %s", kind)
	}
}

// Decode peels encoding layers off data, outermost suffix first, until name
// carries no known suffix. It returns the original bytes and name. secret
// is used for every layer that needs one.
func (c *Codec) Decode(name string, data []byte, secret string) ([]byte, string, error) {
	layers := 0
	for {
		kind, base, ok := SplitSuffix(name)
		if !ok {
			break
		}
		var err error
		switch kind {
		case types.EncodingBase64:
			data, err = decodeBase64(data)
		case types.EncodingEncrypted:
			if secret == "" {
				return nil, "", ErrSecretRequired
			}
			data, err = open(data, secret)
		case types.EncodingArchived:
			if secret == "" {
				return nil, "", ErrSecretRequired
			}
			data, err = unarchive(data, secret)
		}
		if err != nil {
			return nil, "", fmt.Errorf("decoding %s layer of %s: %w", kind, name, err)
		}
		name = base
		layers++
	}

	if layers == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownSuffix, name)
	}
	return data, name, nil
}

// SplitSuffix reports the outermost encoding of name and the name without
// it. A bare suffix with nothing before it is not an encoding.
func SplitSuffix(name string) (types.Encoding, string, bool) {
	lower := strings.ToLower(name)
	for _, kind := range []types.Encoding{types.EncodingBase64, types.EncodingEncrypted, types.EncodingArchived} {
		suffix := Suffix(kind)
		if strings.HasSuffix(lower, suffix) && len(name) > len(suffix) {
			return kind, name[:len(name)-len(suffix)], true
		}
	}
	return types.EncodingNone, name, false
}

// NeedsSecret reports whether decoding name requires a secret.
func NeedsSecret(name string) bool {
	for {
		kind, base, ok := SplitSuffix(name)
		if !ok {
			return false
		}
		if kind.NeedsSecret() {
			return true
		}
		name = base
	}
}

const base64LineWidth = 76

func encodeBase64(raw []byte) []byte {
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(enc, raw)

	var buf bytes.Buffer
	buf.Grow(len(enc) + len(enc)/base64LineWidth + 1)
	for len(enc) > base64LineWidth {
		buf.Write(enc[:base64LineWidth])
		buf.WriteByte('\n')
		enc = enc[base64LineWidth:]
	}
	buf.Write(enc)
	buf.WriteByte('\n')
	return buf.Bytes()
}

// decodeBase64 accepts wrapped input; the standard decoder skips newlines.
func decodeBase64(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return out[:n], nil
}
