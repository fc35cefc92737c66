package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finloop/loandesk/internal/domain"
	"github.com/finloop/loandesk/internal/embedding"
)

func testRouter(classifier *Classifier, embedder domain.EmbeddingClient) *Router {
	return NewRouter(
		testGuardrail(),
		classifier,
		testArbiter(),
		embedder,
		time.Second,
		zap.NewNop(),
	)
}

func TestRouteGuardrailSkipsInference(t *testing.T) {
	embedder := embedding.NewMockClient()
	r := testRouter(nil, embedder)
	p := completeProfile(domain.StatusVerified)

	d := r.Route(context.Background(), p, "how much can I borrow", nil)
	require.NotNil(t, d)
	assert.Equal(t, domain.StageDecision, d.Stage)
	assert.True(t, d.GuardrailTriggered)
	assert.Empty(t, embedder.EmbedCalls)
}

func TestRouteHistoryWidensKeywordScan(t *testing.T) {
	embedder := embedding.NewMockClient()
	r := testRouter(nil, embedder)
	p := completeProfile(domain.StatusPending)

	history := []domain.Message{
		{Role: "user", Content: "I cannot upload the document, there is an error"},
	}
	d := r.Route(context.Background(), p, "can you help", history)
	require.NotNil(t, d)
	assert.Equal(t, domain.StageVerification, d.Stage)
	assert.True(t, d.TechSupport)
	assert.Empty(t, embedder.EmbedCalls)
}

func TestRouteFallsBackWithoutClassifier(t *testing.T) {
	embedder := embedding.NewMockClient()
	r := testRouter(nil, embedder)
	p := completeProfile(domain.StatusPending) // mid-band risk, no keyword

	d := r.Route(context.Background(), p, "hello", nil)
	require.NotNil(t, d)
	assert.Equal(t, domain.StageVerification, d.Stage)
	assert.Equal(t, ReasonFallback, d.Reason)
}

func TestRouteFallsBackOnEmbedFailure(t *testing.T) {
	embedder := &embedding.MockClient{Err: errors.New("embed down")}
	classifier := &Classifier{params: testParams(8)}
	r := testRouter(classifier, embedder)
	p := completeProfile(domain.StatusPending)

	d := r.Route(context.Background(), p, "hello", nil)
	require.NotNil(t, d)
	assert.Equal(t, ReasonFallback, d.Reason)
	assert.Equal(t, domain.StageVerification, d.Stage)
}

// A deployment without any embedding client still routes every turn: the
// classifier is skipped and the arbiter's fallback table answers.
func TestRouteFallsBackWithoutEmbedder(t *testing.T) {
	classifier := &Classifier{params: testParams(8)}
	r := testRouter(classifier, nil)
	p := completeProfile(domain.StatusPending)

	d := r.Route(context.Background(), p, "hello", nil)
	require.NotNil(t, d)
	assert.Equal(t, ReasonFallback, d.Reason)
	assert.Equal(t, domain.StageVerification, d.Stage)
}

// The classifier embeds the bare query: history is for keyword detection
// only and must not reach the embedder.
func TestRouteEmbedsQueryOnly(t *testing.T) {
	embedder := &embedding.MockClient{Dim: 8}
	classifier := &Classifier{params: testParams(8)}
	r := testRouter(classifier, embedder)
	p := completeProfile(domain.StatusPending)

	history := []domain.Message{{Role: "user", Content: "earlier question"}}
	d := r.Route(context.Background(), p, "hello", history)
	require.NotNil(t, d)
	require.Len(t, embedder.EmbedCalls, 1)
	assert.Equal(t, "hello", embedder.EmbedCalls[0])
	assert.Equal(t, ReasonModelInference, d.Reason)
}
