package ledger

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

// Version is incremented when the record format changes.
const Version = 1

// KeySeparator separates key segments.
const KeySeparator = '\x00'

const (
	runPrefix  = "run"
	filePrefix = "file"
)

// Run describes one generation run.
type Run struct {
	Version   int
	ID        string
	Target    string
	Seed      uint64
	CreatedAt time.Time
	Files     int
	Bytes     int64
}

// File is one written file and, for secret-bearing encodings, its secret.
type File struct {
	RunID    string
	Name     string
	Path     string
	Type     types.FileType
	Encoding types.Encoding
	Secret   string
	Size     int64
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(v any) func([]byte) error {
	return func(data []byte) error {
		return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
	}
}

// makeKey joins segments with KeySeparator.
func makeKey(parts ...string) []byte {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(KeySeparator)
		}
		b.WriteString(p)
	}
	return b.Bytes()
}

// makePrefix is makeKey plus a trailing separator.
func makePrefix(parts ...string) []byte {
	return append(makeKey(parts...), KeySeparator)
}
