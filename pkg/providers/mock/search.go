package mock

import (
	"context"
	"sync"

	"github.com/nevra-labs/nevra/pkg/adapters/search"
)

type Searcher struct {
	Answer string
	Err    error

	mu      sync.Mutex
	queries []string
}

func NewSearcher(answer string) *Searcher {
	return &Searcher{Answer: answer}
}

func (m *Searcher) Name() string { return "mock_search" }

func (m *Searcher) Search(ctx context.Context, query string) (string, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	return m.Answer, nil
}

func (m *Searcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

var _ search.Searcher = (*Searcher)(nil)
