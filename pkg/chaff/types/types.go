// Package types provides the core data model shared by the chaff planner,
// generator and decoder: planned files, reference edges, encodings, age
// buckets and timestamp triples, along with helpers for parsing and
// formatting byte sizes.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// NodeID identifies a planned file within a single run. IDs are assigned in
// creation order and never reused.
type NodeID int

// FileType is the closed set of decoy file categories.
type FileType string

// Supported file types.
const (
	Document    FileType = "document"
	Spreadsheet FileType = "spreadsheet"
	Email       FileType = "email"
	Image       FileType = "image"
	Text        FileType = "text"
	Structured  FileType = "structured"
)

// AllFileTypes lists every file type in a stable order.
var AllFileTypes = []FileType{Document, Spreadsheet, Email, Image, Text, Structured}

// ErrUnknownFileType indicates a type tag outside the closed set.
var ErrUnknownFileType = errors.New("unknown file type")

var extensions = map[FileType][]string{
	Document:    {"pdf", "docx"},
	Spreadsheet: {"csv", "xlsx"},
	Email:       {"eml"},
	Image:       {"png", "jpg"},
	Text:        {"txt", "md"},
	Structured:  {"json", "yaml", "xml"},
}

// ParseFileType converts a configuration tag into a FileType.
func ParseFileType(s string) (FileType, error) {
	t := FileType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := extensions[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFileType, s)
	}
	return t, nil
}

// Extensions returns the file extensions (without dot) a type may carry.
func (t FileType) Extensions() []string {
	return extensions[t]
}

// Role is the meaning of a reference edge.
type Role uint8

// Reference roles.
const (
	Attachment Role = iota
	EmbeddedAsset
	PasswordHint
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case Attachment:
		return "attachment"
	case EmbeddedAsset:
		return "embeddedAsset"
	case PasswordHint:
		return "passwordHint"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	for _, v := range []Role{Attachment, EmbeddedAsset, PasswordHint} {
		if v.String() == string(text) {
			*r = v
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", text)
}

// Encoding is the wrapping applied to a rendered payload.
type Encoding uint8

// Encoding kinds.
const (
	EncodingNone Encoding = iota
	EncodingBase64
	EncodingEncrypted
	EncodingArchived
)

// AllEncodings lists every encoding kind in weight-table order.
var AllEncodings = []Encoding{EncodingNone, EncodingBase64, EncodingEncrypted, EncodingArchived}

// String returns the encoding name as used in configuration.
func (e Encoding) String() string {
	switch e {
	case EncodingNone:
		return "none"
	case EncodingBase64:
		return "base64"
	case EncodingEncrypted:
		return "encrypted"
	case EncodingArchived:
		return "archived"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(e))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Encoding) UnmarshalText(text []byte) error {
	for _, v := range AllEncodings {
		if v.String() == string(text) {
			*e = v
			return nil
		}
	}
	return fmt.Errorf("unknown encoding %q", text)
}

// NeedsSecret reports whether the encoding requires a password.
func (e Encoding) NeedsSecret() bool {
	return e == EncodingEncrypted || e == EncodingArchived
}

// AgeBucket is a coarse file age category.
type AgeBucket uint8

// Age buckets, youngest first.
const (
	Recent AgeBucket = iota
	Medium
	Old
	Archive
)

// AllAgeBuckets lists the buckets in weight-table order.
var AllAgeBuckets = []AgeBucket{Recent, Medium, Old, Archive}

// String returns the bucket name.
func (b AgeBucket) String() string {
	switch b {
	case Recent:
		return "recent"
	case Medium:
		return "medium"
	case Old:
		return "old"
	case Archive:
		return "archive"
	default:
		return fmt.Sprintf("AgeBucket(%d)", uint8(b))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b AgeBucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *AgeBucket) UnmarshalText(text []byte) error {
	for _, v := range AllAgeBuckets {
		if v.String() == string(text) {
			*b = v
			return nil
		}
	}
	return fmt.Errorf("unknown age bucket %q", text)
}

// DayRange returns the bucket's age bounds in days before now. The lower
// bound is exclusive for every bucket except recent.
func (b AgeBucket) DayRange() (lo, hi int) {
	switch b {
	case Recent:
		return 1, 30
	case Medium:
		return 30, 730
	case Old:
		return 730, 1825
	default:
		return 1825, 3650
	}
}

// Reference is a directed edge to another planned file.
type Reference struct {
	Target NodeID `json:"target"`
	Role   Role   `json:"role"`
}

// TimestampTriple holds the filesystem timestamps for one file plus the
// in-content date handed to the renderer.
type TimestampTriple struct {
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
	Accessed     time.Time `json:"accessed"`
	DocumentDate time.Time `json:"document_date"`
	Bucket       AgeBucket `json:"bucket"`
}

// Ordered reports whether created <= modified <= accessed.
func (t TimestampTriple) Ordered() bool {
	return !t.Modified.Before(t.Created) && !t.Accessed.Before(t.Modified)
}

// FileSpec is a planned, not yet materialized, decoy file.
type FileSpec struct {
	// ID is unique within the run.
	ID NodeID `json:"id"`

	Type FileType `json:"type"`

	// Ext is the concrete extension, without dot.
	Ext string `json:"ext"`

	// TargetSize is the pre-encoding size the renderer aims for.
	TargetSize int64 `json:"target_size"`

	Language string `json:"language"`

	// Generation orders nodes topologically. Attachment and embed edges, and
	// the edge from a secret node to its hint carrier, always point to a
	// strictly lower generation.
	Generation int `json:"generation"`

	References []Reference `json:"references,omitempty"`

	Encoding Encoding `json:"encoding"`
	Secret   string   `json:"-"`

	// BaseName is the logical name without extension.
	BaseName string `json:"base_name"`

	// FinalName is the on-disk name including the encoding suffix.
	FinalName string `json:"final_name"`

	// HintLines are human readable secret hints this node must render.
	HintLines []string `json:"-"`

	Timestamps TimestampTriple `json:"timestamps"`

	// Synthetic marks hint notes appended by the graph builder.
	Synthetic bool `json:"synthetic,omitempty"`
}

// LogicalName returns the pre-encoding file name, e.g. "report.pdf".
func (s *FileSpec) LogicalName() string {
	return s.BaseName + "." + s.Ext
}

// Targets returns the targets of every edge with the given role.
func (s *FileSpec) Targets(role Role) []NodeID {
	var ids []NodeID
	for _, ref := range s.References {
		if ref.Role == role {
			ids = append(ids, ref.Target)
		}
	}
	return ids
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string ("512", "100K", "10MB",
// "1.5GiB") and returns the size in bytes. Units are binary; decimal values
// are truncated to the nearest byte.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable IEC string.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}
