package search

import "context"

// Searcher defines the contract for a web-search fallback capability.
type Searcher interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Search answers a time-sensitive query with fresh results.
	Search(ctx context.Context, query string) (string, error)
}
