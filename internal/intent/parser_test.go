package intent

import (
	"errors"
	"testing"

	"intentforge/internal/types"
)

func TestParseAssistantText_Markers(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, `Here's the plan:
Keep: your channel logo (top right)
Render: a fox wearing sunglasses (center)
Display text: "GG" (bottom)
Does this match your vision?`)

	if len(schema.SceneElements) != 3 {
		t.Fatalf("got %d elements, want 3", len(schema.SceneElements))
	}

	byKind := map[types.SourceKind]types.SceneElement{}
	for _, el := range schema.SceneElements {
		byKind[el.SourceKind] = el
	}

	if el := byKind[types.SourceKeepAsset]; el.Content != "your channel logo" || el.Region != "top right" {
		t.Errorf("keep element wrong: %+v", el)
	}
	if el := byKind[types.SourceRender]; el.Content != "a fox wearing sunglasses" || el.Region != "center" {
		t.Errorf("render element wrong: %+v", el)
	}
	if el := byKind[types.SourceDisplayText]; el.Content != "GG" || el.Region != "bottom" {
		t.Errorf("display element wrong: %+v", el)
	}

	if !schema.LastReplyEndedWithQuestion {
		t.Error("trailing question not detected")
	}
}

func TestParseAssistantText_Idempotent(t *testing.T) {
	schema := types.NewIntentSchema()
	text := "Render: a fox (center)\nRender: a moon (top left)"

	ParseAssistantText(schema, text)
	first := len(schema.SceneElements)
	ParseAssistantText(schema, text)
	ParseAssistantText(schema, text)

	if len(schema.SceneElements) != first {
		t.Errorf("re-parsing duplicated elements: %d -> %d", first, len(schema.SceneElements))
	}

	// Same content, different casing and spacing still dedupes.
	ParseAssistantText(schema, "Render:   A  FOX (center)")
	if len(schema.SceneElements) != first {
		t.Errorf("normalized duplicate was added: %d -> %d", first, len(schema.SceneElements))
	}
}

func TestParseAssistantText_RegionDistinguishes(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, "Render: a star (top left)")
	ParseAssistantText(schema, "Render: a star (bottom right)")

	if len(schema.SceneElements) != 2 {
		t.Errorf("same content in different regions must be two elements, got %d", len(schema.SceneElements))
	}
}

func TestParseAssistantText_InstructionAmbiguity(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, "Display text: make it sparkle")

	if len(schema.SceneElements) != 0 {
		t.Errorf("ambiguous content must not become an element yet, got %d", len(schema.SceneElements))
	}
	if len(schema.Ambiguities) != 1 {
		t.Fatalf("got %d ambiguities, want 1", len(schema.Ambiguities))
	}
	a := schema.Ambiguities[0]
	if a.Resolved {
		t.Error("new ambiguity must start unresolved")
	}
	if a.ClarificationQuestion == "" {
		t.Error("ambiguity carries no clarification question")
	}

	// Re-parsing never duplicates the open question.
	ParseAssistantText(schema, "Display text: make it sparkle")
	if len(schema.Ambiguities) != 1 {
		t.Errorf("re-parse duplicated the ambiguity: %d", len(schema.Ambiguities))
	}
}

func TestParseAssistantText_QuotedTextIsLiteral(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, `Display text: "make it sparkle"`)

	if len(schema.Ambiguities) != 0 {
		t.Errorf("quoted text must be literal, got %d ambiguities", len(schema.Ambiguities))
	}
	if len(schema.SceneElements) != 1 || schema.SceneElements[0].Content != "make it sparkle" {
		t.Fatalf("quoted literal not captured: %+v", schema.SceneElements)
	}
}

func TestParseAssistantText_TitleCaseIsLiteral(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, "Display text: Epic Win")

	if len(schema.Ambiguities) != 0 {
		t.Errorf("Title Case text must be literal, got %d ambiguities", len(schema.Ambiguities))
	}
	if len(schema.SceneElements) != 1 {
		t.Fatalf("literal not captured: %+v", schema.SceneElements)
	}
}

func TestParseAssistantText_ReadyMarkerAndSummary(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, "Ready to generate!\nSummary: a hype fox emote with sunglasses.")

	if !schema.ModelClaimedReady {
		t.Error("ready marker not detected")
	}
	if schema.LastCoachSummary != "a hype fox emote with sunglasses." {
		t.Errorf("summary not captured: %q", schema.LastCoachSummary)
	}

	// The readiness claim reflects the latest reply only.
	ParseAssistantText(schema, "What color should the fox be?")
	if schema.ModelClaimedReady {
		t.Error("readiness claim must reset when the latest reply lacks a marker")
	}
}

func TestParseUserText_Confirmation(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"yes that's perfect", true},
		{"Yes!", true},
		{"looks good to me", true},
		{"ship it", true},
		{"exactly what I wanted", true},
		{"give the fox bright eyes", false}, // "yes" inside "eyes" must not confirm
		{"make it brighter", false},
		{"", false},
	}

	for _, tc := range cases {
		schema := types.NewIntentSchema()
		ParseUserText(schema, tc.text)
		if schema.UserConfirmedVision != tc.want {
			t.Errorf("ParseUserText(%q): confirmed=%v, want %v", tc.text, schema.UserConfirmedVision, tc.want)
		}
	}
}

func TestParseUserText_ConfirmationSticks(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseUserText(schema, "yes")
	ParseUserText(schema, "actually also add a hat")

	if !schema.UserConfirmedVision {
		t.Error("a later refinement must not clear an earlier confirmation")
	}
}

func TestParseUserText_ResolveAmbiguityAsText(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, "Display text: make it sparkle")

	ParseUserText(schema, "I want it as text on the image")

	if len(schema.UnresolvedAmbiguities()) != 0 {
		t.Fatal("ambiguity not resolved")
	}
	if len(schema.SceneElements) != 1 || schema.SceneElements[0].SourceKind != types.SourceDisplayText {
		t.Errorf("text answer must produce a display element: %+v", schema.SceneElements)
	}
}

func TestParseUserText_ResolveAmbiguityAsEffect(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, "Display text: make it sparkle")

	ParseUserText(schema, "no, that's an instruction, draw it sparkling")

	if len(schema.UnresolvedAmbiguities()) != 0 {
		t.Fatal("ambiguity not resolved")
	}
	if len(schema.SceneElements) != 1 || schema.SceneElements[0].SourceKind != types.SourceRender {
		t.Errorf("effect answer must produce a render element: %+v", schema.SceneElements)
	}
}

func TestParseUserText_OneAnswerResolvesOneQuestion(t *testing.T) {
	schema := types.NewIntentSchema()
	ParseAssistantText(schema, "Display text: make it glow")
	ParseAssistantText(schema, "Display text: add more drama")

	ParseUserText(schema, "the first one should be visible text")

	if got := len(schema.UnresolvedAmbiguities()); got != 1 {
		t.Errorf("one answer must resolve exactly one question, %d still open", got)
	}
}

func TestContainsReadyMarker(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Ready to generate!", true},
		{"ready!", true},
		{"Your vision is confirmed and complete.", true},
		{"Are you ready for more questions?", false},
		{"I am already done thinking", false},
	}
	for _, tc := range cases {
		if got := ContainsReadyMarker(tc.text); got != tc.want {
			t.Errorf("ContainsReadyMarker(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestParseAssistantText_NoMarkersReturnsExtractionError(t *testing.T) {
	schema := types.NewIntentSchema()

	err := ParseAssistantText(schema, "Sounds fun, tell me more about it.")
	var extractErr *types.ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("markerless reply returned %v, want ExtractionError", err)
	}
	if len(schema.SceneElements) != 0 {
		t.Errorf("markerless reply added elements: %+v", schema.SceneElements)
	}

	if err := ParseAssistantText(schema, "Render: a fox (center)"); err != nil {
		t.Fatalf("marker reply returned %v", err)
	}
}

func TestSeedDraft(t *testing.T) {
	schema := types.NewIntentSchema()

	SeedDraft(schema, "  a grumpy cat wearing a crown  ")
	if len(schema.SceneElements) != 1 {
		t.Fatalf("got %d elements, want 1", len(schema.SceneElements))
	}
	el := schema.SceneElements[0]
	if el.Content != "a grumpy cat wearing a crown" || el.SourceKind != types.SourceRender {
		t.Errorf("seeded element wrong: %+v", el)
	}

	// Re-seeding identical text never duplicates.
	SeedDraft(schema, "A grumpy  cat wearing a crown")
	if len(schema.SceneElements) != 1 {
		t.Errorf("re-seed duplicated: %d elements", len(schema.SceneElements))
	}

	SeedDraft(schema, "   ")
	if len(schema.SceneElements) != 1 {
		t.Errorf("blank seed added an element")
	}
}
