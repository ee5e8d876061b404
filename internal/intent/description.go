package intent

import (
	"fmt"
	"sort"
	"strings"

	"intentforge/internal/types"
)

// GenerationDescription flattens the schema into the prose description handed
// to the generation pipeline. Mood modifies the style wording; it is never
// emitted as literal display text.
func GenerationDescription(schema *types.IntentSchema, sctx types.SessionContext) string {
	if schema == nil || len(schema.SceneElements) == 0 {
		return ""
	}

	var rendered, kept, displayed []string
	for _, el := range schema.SceneElements {
		content := el.Content
		if el.Region != "" {
			content = fmt.Sprintf("%s positioned at the %s", content, el.Region)
		}
		switch el.SourceKind {
		case types.SourceRender:
			rendered = append(rendered, content)
		case types.SourceKeepAsset:
			kept = append(kept, content)
		case types.SourceDisplayText:
			displayed = append(displayed, el.Content)
		}
	}

	var parts []string
	if len(rendered) > 0 {
		parts = append(parts, strings.Join(rendered, ", "))
	}
	if len(kept) > 0 {
		parts = append(parts, "keeping the existing "+strings.Join(kept, " and "))
	}
	for _, d := range displayed {
		if el := strings.TrimSpace(d); el != "" {
			parts = append(parts, fmt.Sprintf("with the text %q displayed", el))
		}
	}

	desc := strings.Join(parts, ", ")

	if sctx.Mood != "" {
		desc = fmt.Sprintf("%s, styled with a %s mood", desc, strings.ToLower(sctx.Mood))
	}
	if sctx.GameContext != "" {
		desc = fmt.Sprintf("%s, themed for %s", desc, sctx.GameContext)
	}

	return desc
}

// Keywords extracts the significant terms of a description for the final
// hand-off metadata.
func Keywords(description string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(strings.ToLower(description)) {
		w = strings.Trim(w, `.,;:"'()!?`)
		if len(w) <= 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

var stopwords = map[string]bool{
	"with": true, "this": true, "that": true, "from": true, "into": true,
	"over": true, "under": true, "styled": true, "mood": true, "text": true,
	"displayed": true, "positioned": true, "keeping": true, "existing": true,
	"themed": true, "their": true, "your": true, "then": true, "them": true,
}

// DiffDescriptions computes the word-set delta between two description
// versions, feeding the append-only prompt version history.
func DiffDescriptions(oldDesc, newDesc string) types.DescriptionDiff {
	oldSet := wordSet(oldDesc)
	newSet := wordSet(newDesc)

	var added, removed []string
	for w := range newSet {
		if !oldSet[w] {
			added = append(added, w)
		}
	}
	for w := range oldSet {
		if !newSet[w] {
			removed = append(removed, w)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	return types.DescriptionDiff{Added: added, Removed: removed}
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, `.,;:"'()!?`)
		if w != "" {
			set[w] = true
		}
	}
	return set
}
