package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

const defaultMockDimension = 256

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "does": {}, "do": {},
	"for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "was": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "with": {},
}

// MockEmbedder hashes words into a fixed number of buckets. Texts sharing
// words get similar vectors, which is enough for offline runs and tests.
type MockEmbedder struct {
	dim   int
	calls atomic.Int64
}

func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = defaultMockDimension
	}
	return &MockEmbedder{dim: dim}
}

func (m *MockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls.Add(1)
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, m.vector(t))
	}
	return out, nil
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls.Add(1)
	return m.vector(text), nil
}

// Calls reports how many embedding requests were made.
func (m *MockEmbedder) Calls() int64 { return m.calls.Load() }

func (m *MockEmbedder) vector(text string) []float32 {
	vec := make([]float32, m.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, skip := stopWords[w]; skip {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(m.dim)]++
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x * x)
	}
	if sum == 0 {
		vec[0] = 1
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
