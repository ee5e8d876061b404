package search

import "context"

// NullProvider returns no results. Used offline and in tests.
type NullProvider struct{}

// NewNullProvider creates the offline provider.
func NewNullProvider() *NullProvider {
	return &NullProvider{}
}

// Search always returns an empty list.
func (p *NullProvider) Search(ctx context.Context, query string, maxResults int) []Result {
	return nil
}
