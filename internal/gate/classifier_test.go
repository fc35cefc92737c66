package gate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finloop/loandesk/internal/domain"
)

func zeroLayer(out, in int) layerParams {
	w := make([][]float64, out)
	for i := range w {
		w[i] = make([]float64, in)
	}
	return layerParams{Weight: w, Bias: make([]float64, out)}
}

// testParams builds parameters that ignore the text stream and push all
// mass onto class 1 through the state stream.
func testParams(embedDim int) *classifierParams {
	p := &classifierParams{
		EmbedDim:       embedDim,
		TextCompressor: zeroLayer(textBottleneckDim, embedDim),
		StructHidden:   zeroLayer(64, StructDim),
		StructOut:      zeroLayer(structExpandedDim, 64),
		HeadHidden:     zeroLayer(64, textBottleneckDim+structExpandedDim),
		HeadOut:        zeroLayer(NumStages, 64),
	}
	p.StructOut.Bias[0] = 1                       // state[0] = 1
	p.HeadHidden.Weight[0][textBottleneckDim] = 5 // hidden[0] = 5
	p.HeadOut.Weight[1][0] = 2                    // logits = [0, 10, 0]
	return p
}

func TestClassifierDistribution(t *testing.T) {
	c := &Classifier{params: testParams(4)}

	probs, err := c.Classify([]float32{0.1, -0.2, 0.3, 0.4}, make([]float64, StructDim))
	require.NoError(t, err)
	require.Len(t, probs, NumStages)

	sum := 0.0
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[1], 0.99)
}

func TestClassifierPure(t *testing.T) {
	c := &Classifier{params: testParams(4)}
	emb := []float32{0.5, 0.5, 0.5, 0.5}
	feats := StructFeatures(&domain.ApplicantProfile{Name: "x"}, 0.5)

	p1, err := c.Classify(emb, feats)
	require.NoError(t, err)
	p2, err := c.Classify(emb, feats)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestClassifierDimensionMismatch(t *testing.T) {
	c := &Classifier{params: testParams(4)}

	_, err := c.Classify([]float32{0.1}, make([]float64, StructDim))
	var inf *domain.InferenceFailure
	require.True(t, errors.As(err, &inf))
	assert.Equal(t, "gating", inf.Component)

	_, err = c.Classify(make([]float32, 4), []float64{1, 2})
	require.True(t, errors.As(err, &inf))
}

func TestClassifierNotLoaded(t *testing.T) {
	var c *Classifier

	_, err := c.Classify(make([]float32, 4), make([]float64, StructDim))
	var inf *domain.InferenceFailure
	require.True(t, errors.As(err, &inf))
}

func TestLoadClassifierRoundTrip(t *testing.T) {
	raw, err := json.Marshal(testParams(8))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gating.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	c, err := LoadClassifier(path)
	require.NoError(t, err)

	probs, err := c.Classify(make([]float32, 8), make([]float64, StructDim))
	require.NoError(t, err)
	assert.Greater(t, probs[1], 0.99)
}

func TestLoadClassifierRejectsBadShapes(t *testing.T) {
	p := testParams(8)
	p.HeadOut = zeroLayer(NumStages, 63)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gating.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = LoadClassifier(path)
	assert.Error(t, err)
}
