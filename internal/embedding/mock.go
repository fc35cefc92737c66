package embedding

import (
	"context"
	"hash/fnv"
)

const mockDim = 384

// MockClient produces deterministic vectors derived from the input text.
// Identical inputs always map to identical vectors, so similarity queries
// and classifier runs are reproducible in tests.
type MockClient struct {
	Dim int
	Err error

	EmbedCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{Dim: mockDim}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.EmbedCalls = append(c.EmbedCalls, text)
	if c.Err != nil {
		return nil, c.Err
	}

	dim := c.Dim
	if dim <= 0 {
		dim = mockDim
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	for i := range vec {
		// xorshift over the text hash keeps values in [-1, 1)
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		vec[i] = float32(int64(seed%2000)-1000) / 1000
	}
	return vec, nil
}
