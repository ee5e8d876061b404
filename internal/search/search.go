// Package search defines the grounding search port. Providers never return
// errors: on any failure they log and return an empty result list so a
// grounding attempt degrades to "no external context" instead of aborting
// the turn.
package search

import "context"

// Result is one retrieved document summary.
type Result struct {
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	URL          string `json:"url"`
	SourceDomain string `json:"source_domain"`
}

// Provider is the search port.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) []Result
}
