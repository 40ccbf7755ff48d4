// Package config provides configuration management for the chaff generator.
package config

// Default configuration values for chaff.
const (
	// DefaultTargetDirectory is where decoy files are written.
	DefaultTargetDirectory = "~/.chaff"

	DefaultMinRemainingFree = "100MB"
	DefaultMinFileSize      = "0.1MB"
	DefaultMaxFileSize      = "10MB"
	DefaultMinFileCount     = 100
	DefaultMaxFileCount     = 10000

	// DefaultMaxOutDegree caps edges per role per node.
	DefaultMaxOutDegree = 3

	// DefaultExpansionMargin is reserved per planned byte in fill-drive mode
	// against encoding overhead. It covers wrapped base64 plus the renderers'
	// 5% size tolerance.
	DefaultExpansionMargin = 1.45

	// DefaultRecheckInterval is the number of writes between real free
	// space measurements.
	DefaultRecheckInterval = 32

	// DefaultFailureThreshold is the failed/planned ratio above which a run
	// reports failure.
	DefaultFailureThreshold = 0.1

	DefaultSecretLength      = 12
	DefaultKDFIterations     = 100000
	DefaultArchiveWorkFactor = 15

	DefaultCleanupMode = CleanupDelete

	// DefaultRetentionDays is the default number of days to retain manifests.
	DefaultRetentionDays = 30
)

// Cleanup modes.
const (
	CleanupDelete = "delete"
	CleanupTrash  = "trash"
)

// DefaultTypes is the enabled type roster when none is configured.
var DefaultTypes = []string{"document", "spreadsheet", "email", "image", "text", "structured"}

// DefaultLanguages is the enabled language set when none is configured.
var DefaultLanguages = []string{"en"}

// BucketWeights is a categorical distribution over age buckets.
type BucketWeights struct {
	Recent  float64 `mapstructure:"recent"`
	Medium  float64 `mapstructure:"medium"`
	Old     float64 `mapstructure:"old"`
	Archive float64 `mapstructure:"archive"`
}

// Slice returns the weights in bucket order.
func (w BucketWeights) Slice() []float64 {
	return []float64{w.Recent, w.Medium, w.Old, w.Archive}
}

// EncodingWeights is a categorical distribution over encoding kinds.
type EncodingWeights struct {
	None      float64 `mapstructure:"none"`
	Base64    float64 `mapstructure:"base64"`
	Encrypted float64 `mapstructure:"encrypted"`
	Archived  float64 `mapstructure:"archived"`
}

// Slice returns the weights in encoding order.
func (w EncodingWeights) Slice() []float64 {
	return []float64{w.None, w.Base64, w.Encrypted, w.Archived}
}

// DefaultBucketKey holds the fallback distribution for unlisted types.
const DefaultBucketKey = "default"

// DefaultAgeBuckets are the per-type age distributions.
var DefaultAgeBuckets = map[string]BucketWeights{
	"email":          {Recent: 0.40, Medium: 0.30, Old: 0.20, Archive: 0.10},
	"document":       {Recent: 0.20, Medium: 0.40, Old: 0.30, Archive: 0.10},
	"structured":     {Recent: 0.10, Medium: 0.30, Old: 0.40, Archive: 0.20},
	"image":          {Recent: 0.15, Medium: 0.25, Old: 0.35, Archive: 0.25},
	DefaultBucketKey: {Recent: 0.25, Medium: 0.35, Old: 0.25, Archive: 0.15},
}

// DefaultEncodingWeights are the per-type encoding distributions. Images and
// emails stay unencoded so they open with their native viewer.
var DefaultEncodingWeights = map[string]EncodingWeights{
	"document":    {None: 0.30, Base64: 0.40, Encrypted: 0.20, Archived: 0.10},
	"spreadsheet": {None: 0.20, Base64: 0.40, Encrypted: 0.10, Archived: 0.30},
	"text":        {None: 0.30, Base64: 0.40, Encrypted: 0.15, Archived: 0.15},
	"structured":  {None: 0.50, Base64: 0.40, Encrypted: 0.10},
	"email":       {None: 1},
	"image":       {None: 1},
}
