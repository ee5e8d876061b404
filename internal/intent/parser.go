// Package intent converts raw conversation text into the structured intent
// schema and computes its readiness state. Parsing is a pure text -> schema
// delta transformation: no I/O, no clock, fully idempotent, so the brittle
// prose-pattern matching stays isolated and testable.
package intent

import (
	"fmt"
	"regexp"
	"strings"

	"intentforge/internal/logging"
	"intentforge/internal/types"
)

// =============================================================================
// MARKER CORPUS
// =============================================================================
// The coach is prompted to frame scene structure with keep/render/display
// markers. These patterns recognize that framing plus a few common prose
// variants. Matching is line-oriented: one element per marker line.

var (
	keepPattern    = regexp.MustCompile(`(?i)^\s*[-*]?\s*keep(?:\s+asset)?\s*:\s*(.+)$`)
	renderPattern  = regexp.MustCompile(`(?i)^\s*[-*]?\s*render\s*:\s*(.+)$`)
	displayPattern = regexp.MustCompile(`(?i)^\s*[-*]?\s*display(?:\s+text)?\s*:\s*(.+)$`)

	// Trailing "(region)" on a marker line, e.g. "Render: a fox (top left)".
	regionSuffix = regexp.MustCompile(`\s*\(([^)]+)\)\s*$`)

	// Explicit readiness markers in model output. Never trusted on turn 0.
	readyMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bready\s+to\s+generate\b`),
		regexp.MustCompile(`(?i)^\s*ready!\s*$`),
		regexp.MustCompile(`(?i)\byour\s+vision\s+is\s+confirmed\b`),
	}

	// Imperative-verb-plus-object shapes indicate a rendering instruction
	// rather than literal display text.
	imperativePattern = regexp.MustCompile(`(?i)^(add|make|remove|change|put|draw|render|use|apply|increase|decrease|brighten|darken)\b\s+\S+`)

	quotedPattern = regexp.MustCompile(`^["'\x60].*["'\x60]$`)
)

// affirmativeLexicon recognizes a user confirmation signal.
var affirmativeLexicon = []string{
	"yes", "yep", "yeah", "perfect", "exactly", "looks good", "that's it",
	"love it", "that works", "correct", "confirmed", "go ahead", "ship it",
}

// containsAffirmative matches single-word entries on word boundaries so
// "yes" never fires inside "eyes"; multi-word phrases match as substrings.
func containsAffirmative(lower string) bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(lower) {
		words[strings.Trim(w, `.,!?'"`)] = true
	}
	for _, phrase := range affirmativeLexicon {
		if strings.ContainsRune(phrase, ' ') {
			if strings.Contains(lower, phrase) {
				return true
			}
		} else if words[phrase] {
			return true
		}
	}
	return false
}

// normalizeContent canonicalizes element content for deduplication.
func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// splitRegion pulls a trailing "(region)" annotation off marker content.
func splitRegion(content string) (string, string) {
	if m := regionSuffix.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(regionSuffix.ReplaceAllString(content, "")), strings.ToLower(strings.TrimSpace(m[1]))
	}
	return strings.TrimSpace(content), ""
}

// hasElement reports whether schema already carries an element with the same
// normalized content and region.
func hasElement(schema *types.IntentSchema, content, region string) bool {
	norm := normalizeContent(content)
	for _, el := range schema.SceneElements {
		if normalizeContent(el.Content) == norm && el.Region == region {
			return true
		}
	}
	return false
}

func hasAmbiguity(schema *types.IntentSchema, content string) bool {
	norm := normalizeContent(content)
	for _, a := range schema.Ambiguities {
		if normalizeContent(a.Content) == norm {
			return true
		}
	}
	return false
}

func addElement(schema *types.IntentSchema, content, region string, kind types.SourceKind) {
	if content == "" || hasElement(schema, content, region) {
		return
	}
	schema.SceneElements = append(schema.SceneElements, types.SceneElement{
		Region:     region,
		Content:    content,
		SourceKind: kind,
	})
}

// looksLikeInstruction decides whether user-authored display text reads as a
// rendering instruction instead of literal text. Quoted or Title Case text is
// treated as literal. Best-effort heuristic.
func looksLikeInstruction(content string) bool {
	trimmed := strings.TrimSpace(content)
	if quotedPattern.MatchString(trimmed) {
		return false
	}
	if isTitleCase(trimmed) {
		return false
	}
	return imperativePattern.MatchString(trimmed)
}

func isTitleCase(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		r := rune(w[0])
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ContainsReadyMarker reports whether text carries an explicit model-declared
// readiness marker.
func ContainsReadyMarker(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		for _, re := range readyMarkers {
			if re.MatchString(line) {
				return true
			}
		}
	}
	return false
}

// ParseAssistantText applies the latest assistant reply to the schema.
// Idempotent: re-parsing identical input never duplicates elements or
// annotations. Returns an ExtractionError when the reply carried no marker
// lines at all; the caller decides whether a fallback draft is needed.
func ParseAssistantText(schema *types.IntentSchema, text string) error {
	if schema == nil {
		return nil
	}

	found := 0
	for _, line := range strings.Split(text, "\n") {
		switch {
		case keepPattern.MatchString(line):
			content, region := splitRegion(keepPattern.FindStringSubmatch(line)[1])
			addElement(schema, content, region, types.SourceKeepAsset)
			found++
		case renderPattern.MatchString(line):
			content, region := splitRegion(renderPattern.FindStringSubmatch(line)[1])
			addElement(schema, content, region, types.SourceRender)
			found++
		case displayPattern.MatchString(line):
			content, region := splitRegion(displayPattern.FindStringSubmatch(line)[1])
			if looksLikeInstruction(content) {
				if !hasAmbiguity(schema, content) {
					schema.Ambiguities = append(schema.Ambiguities, types.Ambiguity{
						Content: content,
						ClarificationQuestion: fmt.Sprintf(
							"Should %q appear as visible text in the image, or is it an instruction for how to draw it?", content),
					})
					logging.IntentDebug("Ambiguity recorded: %q reads as instruction", content)
				}
			} else {
				addElement(schema, strings.Trim(content, `"'`+"`"), region, types.SourceDisplayText)
			}
			found++
		}
	}

	schema.ModelClaimedReady = ContainsReadyMarker(text)
	schema.LastReplyEndedWithQuestion = endsWithQuestion(text)
	if summary := summarize(text); summary != "" {
		schema.LastCoachSummary = summary
	}

	logging.IntentDebug("Assistant parse: %d marker lines, elements=%d ambiguities=%d claimedReady=%v",
		found, len(schema.SceneElements), len(schema.Ambiguities), schema.ModelClaimedReady)

	if found == 0 {
		return &types.ExtractionError{Reason: "no structure markers in reply"}
	}
	return nil
}

// SeedDraft records raw user text as a render element so a working draft
// exists even when the model reply carried no recognizable structure.
// Idempotent through the same dedupe as marker parsing.
func SeedDraft(schema *types.IntentSchema, raw string) {
	if schema == nil {
		return
	}
	addElement(schema, strings.TrimSpace(raw), "", types.SourceRender)
}

// ParseUserText applies the latest user message to the schema: confirmation
// detection and ambiguity resolution.
func ParseUserText(schema *types.IntentSchema, text string) {
	if schema == nil {
		return
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return
	}

	if containsAffirmative(lower) {
		schema.UserConfirmedVision = true
		logging.IntentDebug("User confirmation detected: %q", text)
	}

	resolveAmbiguities(schema, lower)
}

// resolveAmbiguities interprets a user reply as an answer to the oldest
// unresolved clarification, when the reply plainly picks a side.
func resolveAmbiguities(schema *types.IntentSchema, lower string) {
	wantsText := strings.Contains(lower, "as text") || strings.Contains(lower, "visible text") ||
		strings.Contains(lower, "spell it") || strings.Contains(lower, "write it")
	wantsEffect := strings.Contains(lower, "instruction") || strings.Contains(lower, "effect") ||
		strings.Contains(lower, "not text") || strings.Contains(lower, "draw it")

	if !wantsText && !wantsEffect {
		return
	}

	for i := range schema.Ambiguities {
		a := &schema.Ambiguities[i]
		if a.Resolved {
			continue
		}
		a.Resolved = true
		if wantsText {
			addElement(schema, a.Content, "", types.SourceDisplayText)
		} else {
			addElement(schema, a.Content, "", types.SourceRender)
		}
		logging.IntentDebug("Ambiguity resolved (%v): %q", wantsText, a.Content)
		return // one answer resolves one question
	}
}

func endsWithQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasSuffix(trimmed, "?")
}

// summarize extracts a short coach summary line if the reply carries one.
func summarize(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "summary:") {
			return strings.TrimSpace(trimmed[len("summary:"):])
		}
	}
	return ""
}
