// Package dedupe computes stable lead fingerprints and admits each
// fingerprint at most once across runs.
package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/prospector/internal/model"
)

// legalSuffixes are corporate-form tokens dropped from normalized names so
// "Clínica Sorriso Ltda" and "Clinica Sorriso" collide.
var legalSuffixes = map[string]struct{}{
	"ltda":   {},
	"me":     {},
	"eireli": {},
	"epp":    {},
	"sa":     {},
	"s/a":    {},
	"ltd":    {},
	"llc":    {},
	"inc":    {},
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fingerprinter derives identity keys from raw lead fields.
type Fingerprinter struct {
	// countryCode is stripped from phone numbers ("55" for Brazil).
	countryCode string
}

// NewFingerprinter returns a Fingerprinter for the given default country
// code.
func NewFingerprinter(countryCode string) *Fingerprinter {
	return &Fingerprinter{countryCode: countryCode}
}

// Components returns every usable identity key for a lead, strongest
// first: website, then phone, then normalized name plus region. Each
// component carries a prefix so values from different fields can never
// collide. The first component is the lead's fingerprint; the rest serve
// as duplicate guards, so a later record carrying only a weaker
// identifier still collides with a richer record of the same business.
func (f *Fingerprinter) Components(l *model.Lead) []string {
	var keys []string
	if w := NormalizeWebsite(l.Website); w != "" {
		keys = append(keys, "w:"+w)
	}
	if p := f.NormalizePhone(l.Phone); p != "" {
		keys = append(keys, "p:"+p)
	}
	if n := NormalizeName(l.RawName); n != "" {
		keys = append(keys, "n:"+n+"|"+strings.ToLower(strings.TrimSpace(l.Region)))
	}
	return keys
}

// Fingerprint computes the primary identity key for a lead: the first of
// its components.
func (f *Fingerprinter) Fingerprint(l *model.Lead) string {
	keys := f.Components(l)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

// NormalizeWebsite reduces a URL to its comparable core: lowercase, no
// scheme, no www prefix, no trailing slash, no query or fragment.
func NormalizeWebsite(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "www.")
	for _, sep := range []string{"?", "#"} {
		if i := strings.Index(s, sep); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.TrimSuffix(s, "/")
	if !strings.Contains(s, ".") {
		return ""
	}
	return s
}

// NormalizePhone keeps digits only and drops the default country code
// prefix. Numbers too short to be dialable normalize to empty.
func (f *Fingerprinter) NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if f.countryCode != "" && strings.HasPrefix(digits, f.countryCode) && len(digits) > len(f.countryCode)+8 {
		digits = digits[len(f.countryCode):]
	}
	if len(digits) < 8 {
		return ""
	}
	return digits
}

// NormalizeName lowercases, strips diacritics and punctuation, drops
// legal-form suffixes, and collapses whitespace.
func NormalizeName(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '/':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if _, drop := legalSuffixes[w]; drop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
