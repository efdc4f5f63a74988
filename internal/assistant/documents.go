package assistant

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// DocumentStore finds reference text relevant to a question.
type DocumentStore interface {
	// SearchChunks returns up to limit chunk texts, best match first.
	SearchChunks(ctx context.Context, query string, limit int) ([]string, error)

	// FileIDs returns the model-provider file ids of the active documents.
	FileIDs(ctx context.Context) ([]string, error)
}

// Chunk is a piece of an indexed campus document.
type Chunk struct {
	ID      string
	Source  string
	Content string

	// FileID is the id of the source document uploaded to the model
	// provider. Empty when the document was never uploaded.
	FileID string
}

// SearchTerms splits a question into lower-cased keywords. Runs of Han
// characters have no spaces, so they also contribute their bigrams.
func SearchTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(t string) {
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		terms = append(terms, t)
	}

	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	for _, f := range fields {
		add(f)
		runes := []rune(f)
		if len(runes) < 3 || !isHan(runes) {
			continue
		}
		for i := 0; i+1 < len(runes); i++ {
			add(string(runes[i : i+2]))
		}
	}
	return terms
}

func isHan(runes []rune) bool {
	for _, r := range runes {
		if !unicode.Is(unicode.Han, r) {
			return false
		}
	}
	return true
}

// MemoryDocumentStore scores chunks by how many search terms they contain.
type MemoryDocumentStore struct {
	mu     sync.RWMutex
	chunks []Chunk
}

// NewMemoryDocumentStore creates a store holding chunks.
func NewMemoryDocumentStore(chunks ...Chunk) *MemoryDocumentStore {
	return &MemoryDocumentStore{chunks: chunks}
}

// Add appends chunks to the store.
func (m *MemoryDocumentStore) Add(chunks ...Chunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = append(m.chunks, chunks...)
}

// FileIDs returns the distinct non-empty file ids in insertion order.
func (m *MemoryDocumentStore) FileIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	ids := []string{}
	for _, c := range m.chunks {
		if c.FileID == "" || seen[c.FileID] {
			continue
		}
		seen[c.FileID] = true
		ids = append(ids, c.FileID)
	}
	return ids, nil
}

// SearchChunks returns the best-scoring chunks. Chunks matching no term are
// never returned.
func (m *MemoryDocumentStore) SearchChunks(_ context.Context, query string, limit int) ([]string, error) {
	terms := SearchTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return []string{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		content string
		score   int
		index   int
	}
	var hits []scored
	for i, c := range m.chunks {
		content := strings.ToLower(c.Content)
		score := 0
		for _, t := range terms {
			if strings.Contains(content, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{content: c.Content, score: score, index: i})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].index < hits[j].index
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.content
	}
	return out, nil
}
