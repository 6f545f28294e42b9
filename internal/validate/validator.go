// Package validate implements the rule-based lead validator. Rules are
// pure functions over the raw record and run evaluation in a fixed order;
// the first failing rule determines the rejection reason.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/model"
)

// Rejection reasons, one per rule. Stored on the lead and aggregated in
// the run summary.
const (
	ReasonEmptyName       = "empty_name"
	ReasonInvalidKeyword  = "invalid_keyword"
	ReasonInvalidDomain   = "invalid_domain"
	ReasonListiclePattern = "listicle_pattern"
	ReasonSectorMismatch  = "sector_mismatch"
)

// Result is the outcome of validating one record.
type Result struct {
	State  model.ValidationState
	Reason string

	// QualityFlag is set on accepted records with no sector keyword match
	// when strictness is below "high".
	QualityFlag bool
}

// Validator applies the configured rules. Safe for concurrent use; it
// holds no mutable state after construction.
type Validator struct {
	invalidKeywords []string
	invalidDomains  []string
	listicle        []*regexp.Regexp
	minNameLength   int
	strict          bool
}

// New compiles the validator from config. Invalid listicle patterns are a
// configuration error, not a per-record one.
func New(cfg config.ValidatorConfig) (*Validator, error) {
	v := &Validator{
		minNameLength: cfg.MinNameLength,
		strict:        strings.EqualFold(cfg.Strictness, "high"),
	}
	if v.minNameLength <= 0 {
		v.minNameLength = 3
	}
	for _, kw := range cfg.InvalidKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			v.invalidKeywords = append(v.invalidKeywords, kw)
		}
	}
	for _, d := range cfg.InvalidDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			v.invalidDomains = append(v.invalidDomains, d)
		}
	}
	for _, p := range cfg.ListiclePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, eris.Wrapf(err, "validate: compile listicle pattern %q", p)
		}
		v.listicle = append(v.listicle, re)
	}
	return v, nil
}

// Validate runs the rules against one record, in order. sectorKeywords
// are the taxonomy keywords for the run's sector; they drive the final
// relevance rule only.
func (v *Validator) Validate(rec model.RawRecord, sectorKeywords []string) Result {
	name := strings.TrimSpace(rec.Name)

	if len([]rune(name)) < v.minNameLength {
		return rejected(ReasonEmptyName)
	}
	if v.hasInvalidKeyword(name, rec.Snippet) {
		return rejected(ReasonInvalidKeyword)
	}
	if v.hasInvalidDomain(rec.Website) {
		return rejected(ReasonInvalidDomain)
	}
	if v.matchesListicle(name) {
		return rejected(ReasonListiclePattern)
	}
	if !matchesSector(name, rec.Snippet, sectorKeywords) {
		if v.strict {
			return rejected(ReasonSectorMismatch)
		}
		return Result{State: model.ValidationAccepted, QualityFlag: true}
	}

	return Result{State: model.ValidationAccepted}
}

func rejected(reason string) Result {
	return Result{State: model.ValidationRejected, Reason: reason}
}

func (v *Validator) hasInvalidKeyword(name, snippet string) bool {
	haystack := strings.ToLower(name + " " + snippet)
	for _, kw := range v.invalidKeywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (v *Validator) hasInvalidDomain(website string) bool {
	host := hostOf(website)
	if host == "" {
		return false
	}
	for _, blocked := range v.invalidDomains {
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

func (v *Validator) matchesListicle(name string) bool {
	for _, re := range v.listicle {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// matchesSector reports whether any sector keyword appears in the name or
// snippet. Multi-word keywords match as a whole; single words match as
// substrings, which is deliberately loose for inflected forms.
func matchesSector(name, snippet string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(name + " " + snippet)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

// hostOf extracts the lowercase hostname from a website value, tolerating
// bare domains without a scheme.
func hostOf(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}
