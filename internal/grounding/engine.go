package grounding

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"intentforge/internal/llm"
	"intentforge/internal/logging"
)

// Decision is the outcome of a should-ground evaluation.
type Decision struct {
	Should     bool    `json:"should"`
	Query      string  `json:"query,omitempty"`
	Topic      string  `json:"topic,omitempty"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// EngineConfig configures the decision engine.
type EngineConfig struct {
	// FastTopics are frequently-changing topics that force grounding when
	// paired with a recency cue.
	FastTopics []string

	// AssessmentTTL bounds reuse of a prior decision for an identical
	// normalized message.
	AssessmentTTL time.Duration
}

// Engine evaluates, per message, whether external retrieval is required.
// The assessor port is selected once at construction: pass nil to run on the
// keyword heuristic alone.
type Engine struct {
	cfg      EngineConfig
	assessor llm.Client

	mu          sync.Mutex
	assessments map[uint64]cachedDecision

	topicsMu   sync.RWMutex
	fastTopics []string
}

type cachedDecision struct {
	decision Decision
	written  time.Time
}

// NewEngine creates a decision engine. assessor may be nil.
func NewEngine(cfg EngineConfig, assessor llm.Client) *Engine {
	if cfg.AssessmentTTL <= 0 {
		cfg.AssessmentTTL = 5 * time.Minute
	}
	fast := make([]string, 0, len(cfg.FastTopics))
	for _, t := range cfg.FastTopics {
		fast = append(fast, strings.ToLower(strings.TrimSpace(t)))
	}
	return &Engine{
		cfg:         cfg,
		assessor:    assessor,
		assessments: make(map[uint64]cachedDecision),
		fastTopics:  fast,
	}
}

// SetFastTopics replaces the fast-topic table. Used by config hot-reload.
func (e *Engine) SetFastTopics(topics []string) {
	fast := make([]string, 0, len(topics))
	for _, t := range topics {
		fast = append(fast, strings.ToLower(strings.TrimSpace(t)))
	}
	e.topicsMu.Lock()
	e.fastTopics = fast
	e.topicsMu.Unlock()
}

// =============================================================================
// PATTERN CORPUS
// =============================================================================

// skipPatterns match confirmations and refinements of an established vision.
// These never need retrieval.
var skipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(yes|yeah|yep|no|nope|ok|okay|sure|perfect|great|nice|thanks|thank you)[\s.!]*$`),
	regexp.MustCompile(`(?i)^(make|turn|keep) (it|that|this|them)\b`),
	regexp.MustCompile(`(?i)^change (the|it|that|this)\b`),
	regexp.MustCompile(`(?i)^(add|remove|drop) (a |an |some )?\w+( \w+)?[\s.!]*$`),
	regexp.MustCompile(`(?i)^(bigger|smaller|brighter|darker|more|less)\b`),
}

// recencyCues signal that a message cares about current/versioned/located
// state of the world.
var recencyCues = []string{
	"current", "latest", "newest", "new ", "season", "version", "update",
	"patch", "today", "right now", "this week", "this month", "near", "map",
}

var yearPattern = regexp.MustCompile(`\b20\d{2}\b`)

// timeSensitiveWords drive the no-LLM keyword fallback.
var timeSensitiveWords = []string{
	"current", "latest", "newest", "season", "today", "now", "update",
	"patch", "trending", "meta", "recent",
}

// capitalizedRun extracts runs of Capitalized Words (best-effort proper-noun
// extraction; locale- and style-sensitive, misses lowercase stylized input).
var capitalizedRun = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]+(?:\s+[A-Z][a-zA-Z0-9]+)*\b`)

var quotedSpan = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)

// =============================================================================
// DECISION LADDER
// =============================================================================

// ShouldGround runs the decision ladder for one message.
func (e *Engine) ShouldGround(ctx context.Context, message string, privileged bool) Decision {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return Decision{Should: false, Reason: "empty message", Confidence: 1.0}
	}

	// 1. Privilege gate
	if !privileged {
		return Decision{Should: false, Reason: "requires elevated tier", Confidence: 1.0}
	}

	// 2. Skip patterns: confirmations and refinements
	for _, re := range skipPatterns {
		if re.MatchString(trimmed) {
			logging.GroundingDebug("Skip pattern matched: %q", trimmed)
			return Decision{Should: false, Reason: "confirmation or refinement", Confidence: 0.95}
		}
	}

	// 3. Fast path: known live topic + recency cue
	if topic, ok := e.matchFastTopic(trimmed); ok && hasRecencyCue(trimmed) {
		query := e.synthesizeQuery(topic, trimmed)
		logging.Grounding("Fast path: topic=%s query=%q", topic, query)
		return Decision{
			Should:     true,
			Query:      query,
			Topic:      topic,
			Reason:     "live topic with recency cue",
			Confidence: 0.9,
		}
	}

	// 4. Assessment cache
	hash := queryHash(NormalizeQuery(trimmed))
	if d, ok := e.cachedAssessment(hash); ok {
		logging.GroundingDebug("Assessment cache hit for %q", trimmed)
		return d
	}

	// 5. LLM self-assessment (fail safe toward retrieval on parse failure)
	if e.assessor != nil {
		d := e.selfAssess(ctx, trimmed)
		e.storeAssessment(hash, d)
		return d
	}

	// 6. No-LLM keyword fallback
	d := keywordFallback(trimmed)
	e.storeAssessment(hash, d)
	return d
}

func (e *Engine) matchFastTopic(message string) (string, bool) {
	lower := strings.ToLower(message)
	e.topicsMu.RLock()
	defer e.topicsMu.RUnlock()
	// Multiple topics mentioned: the first qualifying one wins.
	for _, topic := range e.fastTopics {
		if strings.Contains(lower, topic) {
			return topic, true
		}
	}
	return "", false
}

func hasRecencyCue(message string) bool {
	lower := strings.ToLower(message)
	for _, cue := range recencyCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return yearPattern.MatchString(message)
}

// synthesizeQuery builds a search query from the topic, extracted proper
// nouns and quoted names, and a recency token.
func (e *Engine) synthesizeQuery(topic, message string) string {
	parts := []string{topic}
	seen := map[string]bool{topic: true}

	for _, m := range quotedSpan.FindAllStringSubmatch(message, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		lower := strings.ToLower(name)
		if !seen[lower] {
			seen[lower] = true
			parts = append(parts, lower)
		}
	}

	for _, name := range capitalizedRun.FindAllString(message, -1) {
		lower := strings.ToLower(name)
		if !seen[lower] {
			seen[lower] = true
			parts = append(parts, lower)
		}
	}

	if !seen["current"] && !seen["latest"] {
		parts = append(parts, "current")
	}
	return strings.Join(parts, " ")
}

func (e *Engine) cachedAssessment(hash uint64) (Decision, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.assessments[hash]
	if !ok || time.Since(c.written) > e.cfg.AssessmentTTL {
		delete(e.assessments, hash)
		return Decision{}, false
	}
	return c.decision, true
}

func (e *Engine) storeAssessment(hash uint64, d Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assessments[hash] = cachedDecision{decision: d, written: time.Now()}
}

// selfAssessment is the structured verdict requested from the LLM.
type selfAssessment struct {
	NeedsSearch    bool    `json:"needs_search"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
	SuggestedQuery string  `json:"suggested_query"`
}

const assessmentSystemPrompt = `You judge whether answering a user's creative-asset request requires fresh external information. Respond with only a JSON object: {"needs_search": bool, "confidence": 0..1, "reason": "...", "suggested_query": "..."}.`

// selfAssess asks the LLM to rate its own ability to answer without
// retrieval. Any failure fails safe toward retrieval rather than risking a
// hallucinated, stale answer.
func (e *Engine) selfAssess(ctx context.Context, message string) Decision {
	raw, _, err := e.assessor.Complete(ctx, assessmentSystemPrompt,
		"User message: "+message)
	if err != nil {
		logging.Get(logging.CategoryGrounding).Warn("Self-assessment call failed, defaulting to retrieval: %v", err)
		return Decision{Should: true, Query: message, Reason: "assessment unavailable; defaulting to retrieval", Confidence: 0.3}
	}

	var verdict selfAssessment
	if err := json.Unmarshal([]byte(extractJSON(raw)), &verdict); err != nil {
		logging.Get(logging.CategoryGrounding).Warn("Self-assessment parse failed, defaulting to retrieval: %v", err)
		return Decision{Should: true, Query: message, Reason: "assessment parse failed; defaulting to retrieval", Confidence: 0.3}
	}

	query := verdict.SuggestedQuery
	if query == "" {
		query = message
	}
	d := Decision{
		Should:     verdict.NeedsSearch,
		Reason:     verdict.Reason,
		Confidence: verdict.Confidence,
	}
	if d.Should {
		d.Query = query
	}
	logging.GroundingDebug("Self-assessment: should=%v conf=%.2f reason=%s", d.Should, d.Confidence, d.Reason)
	return d
}

// extractJSON strips markdown code fences around a JSON payload.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	if start := strings.Index(trimmed, "{"); start > 0 {
		trimmed = trimmed[start:]
	}
	return trimmed
}

// keywordFallback is the pure heuristic over time-sensitive vocabulary.
func keywordFallback(message string) Decision {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(message)) {
		words[strings.Trim(w, `.,;:"'()!?`)] = true
	}
	for _, w := range timeSensitiveWords {
		if words[w] {
			return Decision{
				Should:     true,
				Query:      NormalizeQuery(message),
				Reason:     "time-sensitive vocabulary: " + w,
				Confidence: 0.6,
			}
		}
	}
	if yearPattern.MatchString(message) {
		return Decision{
			Should:     true,
			Query:      NormalizeQuery(message),
			Reason:     "year token present",
			Confidence: 0.6,
		}
	}
	return Decision{Should: false, Reason: "no time-sensitive signals", Confidence: 0.6}
}
