// Package validator is the rule-based gate that scores a finalized generation
// description before hand-off. Issues are data, never errors: validation can
// block generation readiness but never the conversation itself.
package validator

import (
	"fmt"
	"strings"

	"intentforge/internal/logging"
)

// Severity grades an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding against a description.
type Issue struct {
	Severity    Severity `json:"severity"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Suggestion  string   `json:"suggestion,omitempty"`
	AutoFixable bool     `json:"auto_fixable"`
}

// Report is the validation outcome.
type Report struct {
	IsValid           bool    `json:"is_valid"`
	IsGenerationReady bool    `json:"is_generation_ready"`
	Issues            []Issue `json:"issues"`
	FixedDescription  string  `json:"fixed_description,omitempty"`
	QualityScore      float64 `json:"quality_score"`
}

// BrandContext carries the palette used by the brand-alignment check.
type BrandContext struct {
	Name    string   `json:"name"`
	Palette []string `json:"palette"` // color names, lowercase
}

// Config sets the validator's bounds.
type Config struct {
	MinWords    int
	MaxWords    int
	MaxWarnings int // warnings allowed while still generation-ready
}

// DefaultConfig returns production bounds.
func DefaultConfig() Config {
	return Config{MinWords: 4, MaxWords: 120, MaxWarnings: 2}
}

// Validator applies the rule tables to descriptions.
type Validator struct {
	cfg Config
}

// New creates a validator.
func New(cfg Config) *Validator {
	if cfg.MinWords <= 0 {
		cfg.MinWords = 4
	}
	if cfg.MaxWords <= cfg.MinWords {
		cfg.MaxWords = 120
	}
	if cfg.MaxWarnings < 0 {
		cfg.MaxWarnings = 2
	}
	return &Validator{cfg: cfg}
}

// Validate runs every check and scores the result.
func (v *Validator) Validate(description, assetType string, brand *BrandContext) Report {
	var issues []Issue
	fixed := ""

	words := strings.Fields(description)
	lower := strings.ToLower(description)

	// Length bounds
	if len(words) < v.cfg.MinWords {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       "desc_too_short",
			Message:    fmt.Sprintf("description has %d words, need at least %d", len(words), v.cfg.MinWords),
			Suggestion: "add subject, style and composition details",
		})
	} else if len(words) > v.cfg.MaxWords {
		fixed = strings.Join(words[:v.cfg.MaxWords], " ")
		issues = append(issues, Issue{
			Severity:    SeverityWarning,
			Code:        "desc_too_long",
			Message:     fmt.Sprintf("description has %d words, max %d", len(words), v.cfg.MaxWords),
			Suggestion:  "trim to the essential elements",
			AutoFixable: true,
		})
	}

	// Required semantic slots by asset type
	for _, s := range requiredSlots[strings.ToLower(assetType)] {
		if !containsAny(lower, s.Indicators) {
			issues = append(issues, Issue{
				Severity:   SeverityWarning,
				Code:       "missing_" + s.Name,
				Message:    fmt.Sprintf("no %s found in description", s.Name),
				Suggestion: s.Suggestion,
			})
		}
	}

	// Pairwise style conflicts
	for _, pair := range conflictPairs {
		if containsWord(lower, pair[0]) && containsWord(lower, pair[1]) {
			issues = append(issues, Issue{
				Severity:   SeverityWarning,
				Code:       "style_conflict",
				Message:    fmt.Sprintf("conflicting styles: %q vs %q", pair[0], pair[1]),
				Suggestion: "pick one style direction",
			})
		}
	}

	// Small-format compatibility
	if smallFormats[strings.ToLower(assetType)] {
		if containsAny(lower, backgroundIndicators) {
			issues = append(issues, Issue{
				Severity:   SeverityWarning,
				Code:       "small_format_background",
				Message:    "backgrounds rarely read at emote scale",
				Suggestion: "use a transparent background",
			})
		}
		if containsAny(lower, textIndicators) {
			issues = append(issues, Issue{
				Severity:   SeverityWarning,
				Code:       "small_format_text",
				Message:    "text is hard to read at emote scale",
				Suggestion: "drop the text or keep it to 2-3 large letters",
			})
		}
	}

	// Brand palette alignment
	if brand != nil && len(brand.Palette) > 0 {
		palette := make(map[string]bool, len(brand.Palette))
		for _, c := range brand.Palette {
			palette[strings.ToLower(c)] = true
		}
		for _, color := range colorLexicon {
			if containsWord(lower, color) && !palette[color] {
				issues = append(issues, Issue{
					Severity:   SeverityWarning,
					Code:       "brand_color_mismatch",
					Message:    fmt.Sprintf("color %q is not in the brand palette", color),
					Suggestion: "swap to a palette color: " + strings.Join(brand.Palette, ", "),
				})
			}
		}
	}

	errorCount, warningCount := 0, 0
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityError:
			errorCount++
		case SeverityWarning:
			warningCount++
		}
	}

	score := 1.0 - 0.3*float64(errorCount) - 0.1*float64(warningCount)
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	report := Report{
		IsValid:           errorCount == 0,
		IsGenerationReady: errorCount == 0 && warningCount <= v.cfg.MaxWarnings,
		Issues:            issues,
		FixedDescription:  fixed,
		QualityScore:      score,
	}

	logging.ValidatorDebug("Validated %q (%s): errors=%d warnings=%d score=%.2f ready=%v",
		truncate(description, 60), assetType, errorCount, warningCount, score, report.IsGenerationReady)
	return report
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if containsWord(haystack, n) {
			return true
		}
	}
	return false
}

// containsWord matches needle as a whole word (or word prefix for plural and
// verb forms, e.g. "celebrating" matches "celebrat").
func containsWord(haystack, needle string) bool {
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		i += idx
		beforeOK := i == 0 || !isLetter(haystack[i-1])
		if beforeOK {
			end := i + len(needle)
			if end >= len(haystack) || !isLetter(haystack[end]) || isSuffixLetter(haystack[end:]) {
				return true
			}
		}
		idx = i + len(needle)
		if idx >= len(haystack) {
			return false
		}
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isSuffixLetter allows common inflections after an indicator word.
func isSuffixLetter(rest string) bool {
	for _, suffix := range []string{"s ", "s.", "s,", "ing", "ed", "es"} {
		if strings.HasPrefix(rest, suffix) {
			return true
		}
	}
	return rest == "s"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
