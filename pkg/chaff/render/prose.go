package render

import (
	"math/rand/v2"
	"strings"
)

// vocabulary holds ASCII filler words per language. Unlisted languages
// use English.
var vocabulary = map[string][]string{
	"en": {
		"the", "quarterly", "review", "budget", "team", "project", "update", "report", "schedule",
		"approved", "pending", "client", "meeting", "follow", "up", "on", "with", "and", "for",
		"revenue", "forecast", "delivery", "milestone", "risk", "plan", "vendor", "contract",
		"initial", "draft", "final", "summary", "office", "policy", "renewal", "expected", "next",
		"week", "month", "support", "migration", "audit", "timeline", "resources", "please", "confirm",
	},
	"es": {
		"el", "la", "informe", "trimestral", "presupuesto", "equipo", "proyecto", "reunion",
		"cliente", "entrega", "pendiente", "aprobado", "revision", "plan", "contrato", "proveedor",
		"semana", "mes", "siguiente", "resumen", "oficina", "politica", "riesgo", "de", "con", "para",
	},
	"fr": {
		"le", "la", "rapport", "trimestriel", "budget", "equipe", "projet", "reunion", "client",
		"livraison", "en", "attente", "approuve", "revision", "plan", "contrat", "fournisseur",
		"semaine", "mois", "prochain", "resume", "bureau", "politique", "risque", "de", "avec", "pour",
	},
	"de": {
		"der", "die", "das", "bericht", "quartal", "budget", "team", "projekt", "besprechung",
		"kunde", "lieferung", "offen", "genehmigt", "pruefung", "plan", "vertrag", "lieferant",
		"woche", "monat", "naechste", "zusammenfassung", "buero", "richtlinie", "risiko", "mit", "und",
	},
	"cn": {
		"baogao", "jidu", "yusuan", "tuandui", "xiangmu", "huiyi", "kehu", "jiaofu", "daiding",
		"pizhun", "shenhe", "jihua", "hetong", "gongyingshang", "zhou", "yue", "xiayige", "zongjie",
	},
	"jp": {
		"hokoku", "shihanki", "yosan", "chimu", "purojekuto", "kaigi", "kokyaku", "nohin", "horyu",
		"shonin", "kento", "keikaku", "keiyaku", "torihikisaki", "shu", "tsuki", "tsugi", "yoyaku",
	},
	"ru": {
		"otchet", "kvartal", "byudzhet", "komanda", "proekt", "vstrecha", "klient", "postavka",
		"ozhidanie", "odobreno", "proverka", "plan", "dogovor", "postavshchik", "nedelya", "mesyats",
		"sleduyushchiy", "itogi", "ofis", "politika", "risk", "i", "s", "dlya",
	},
}

var (
	departments = []string{"Finance", "Operations", "Legal", "Marketing", "Engineering", "Sales", "HR", "Procurement"}
	firstNames  = []string{"Alex", "Jordan", "Sam", "Taylor", "Morgan", "Casey", "Riley", "Jamie", "Robin", "Avery"}
	lastNames   = []string{"Smith", "Garcia", "Chen", "Novak", "Ivanova", "Tanaka", "Dubois", "Weber", "Silva", "Brown"}
	mailDomains = []string{"example.com", "corp.example.org", "mail.example.net"}
)

type prose struct {
	rng   *rand.Rand
	words []string
}

func newProse(lang string, rng *rand.Rand) *prose {
	words, ok := vocabulary[lang]
	if !ok {
		words = vocabulary["en"]
	}
	return &prose{rng: rng, words: words}
}

func (p *prose) pick(values []string) string {
	return values[p.rng.IntN(len(values))]
}

func (p *prose) sentence() string {
	n := 6 + p.rng.IntN(9)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = p.pick(p.words)
	}
	parts[0] = strings.ToUpper(parts[0][:1]) + parts[0][1:]
	return strings.Join(parts, " ") + "."
}

func (p *prose) paragraph() string {
	n := 3 + p.rng.IntN(5)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = p.sentence()
	}
	return strings.Join(parts, " ")
}

// paragraphs returns paragraphs totalling about n bytes of text.
func (p *prose) paragraphs(n int) []string {
	var out []string
	for total := 0; total < n; {
		para := p.paragraph()
		if rest := n - total; len(para) > rest {
			para = strings.TrimRight(para[:rest], " ")
		}
		if para != "" {
			out = append(out, para)
		}
		total += len(para) + 1
	}
	return out
}

// text returns exactly n bytes of prose ending in a newline.
func (p *prose) text(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	for b.Len() < n {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.paragraph())
	}
	return b.String()[:n-1] + "\n"
}

func (p *prose) person() string {
	return p.pick(firstNames) + " " + p.pick(lastNames)
}

func address(name, domain string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@" + domain
}
