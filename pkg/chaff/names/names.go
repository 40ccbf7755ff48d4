// Package names generates plausible file names and keeps them unique
// within a target directory.
package names

import (
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

var baseNames = map[string][]string{
	"en": {"document", "report", "data", "file", "backup", "archive", "notes", "invoice", "minutes", "budget"},
	"es": {"documento", "informe", "datos", "archivo", "respaldo", "notas", "factura", "presupuesto"},
	"fr": {"document", "rapport", "donnees", "fichier", "sauvegarde", "notes", "facture", "budget"},
	"de": {"dokument", "bericht", "daten", "datei", "sicherung", "notizen", "rechnung", "haushalt"},
	"cn": {"wenjian", "baogao", "shuju", "beifen", "linshi"},
	"jp": {"bunsho", "hokoku", "deeta", "bakkuappu", "ichiji"},
	"ru": {"dokument", "otchet", "dannye", "fajl", "rezerv", "zametki"},
}

// noteNames are used for synthesized hint notes.
var noteNames = map[string][]string{
	"en": {"passwords", "access", "credentials", "keys", "reminder"},
	"es": {"contrasenas", "acceso", "claves", "recordatorio"},
	"fr": {"motsdepasse", "acces", "identifiants", "rappel"},
	"de": {"passwoerter", "zugang", "zugangsdaten", "erinnerung"},
}

var variations = []string{"", "_copy", "_backup", "_final", "_draft", "_v2", "_old"}

// Languages lists the languages with a dedicated vocabulary. Others fall
// back to English.
func Languages() []string {
	out := make([]string, 0, len(baseNames))
	for lang := range baseNames {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Base returns a logical base name (no extension) for a file in lang.
// About 30% of names carry a date tag between 2020 and now.
func Base(lang string, note bool, now time.Time, rng *rand.Rand) string {
	vocab := baseNames
	if note {
		vocab = noteNames
	}
	words, ok := vocab[lang]
	if !ok {
		words = vocab["en"]
	}

	name := words[rng.IntN(len(words))]
	if rng.Float64() < 0.3 {
		start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		days := int(now.Sub(start).Hours() / 24)
		if days < 1 {
			days = 1
		}
		name += "_" + start.AddDate(0, 0, rng.IntN(days)).Format("20060102")
	}
	return name + variations[rng.IntN(len(variations))]
}

// Registry hands out names unique within one directory. Comparison is case
// insensitive so the result is safe on case-folding filesystems.
type Registry struct {
	mu    sync.Mutex
	taken map[string]bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{taken: make(map[string]bool)}
}

// LoadDir marks every entry already in dir as taken. A missing directory is
// not an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("listing %s: %w", dir, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.taken[strings.ToLower(e.Name())] = true
	}
	return nil
}

// Claim reserves base+rest, where rest is everything after the base name
// (extension and encoding suffix). On collision it tries base_1, base_2 and
// so on, and returns the base that was reserved.
func (r *Registry) Claim(base, rest string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := base
	for i := 1; r.taken[strings.ToLower(candidate+rest)]; i++ {
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
	r.taken[strings.ToLower(candidate+rest)] = true
	return candidate
}

// Taken reports whether name is reserved.
func (r *Registry) Taken(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.taken[strings.ToLower(name)]
}
