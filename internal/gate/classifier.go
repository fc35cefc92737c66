package gate

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/finloop/loandesk/internal/domain"
)

// NumStages is the classifier's output width, one logit per stage.
const NumStages = 3

// textBottleneckDim is the compressed width of the semantic stream. The
// text embedding is squeezed this narrow before fusion so phrasing cannot
// dominate the structured state.
const textBottleneckDim = 32

// structExpandedDim is the expanded width of the state stream.
const structExpandedDim = 128

// layerParams is one dense layer in torch Linear convention:
// out[i] = bias[i] + sum_j weight[i][j] * in[j].
type layerParams struct {
	Weight [][]float64 `json:"weight"`
	Bias   []float64   `json:"bias"`
}

func (l *layerParams) dims() (out, in int) {
	if len(l.Weight) == 0 {
		return 0, 0
	}
	return len(l.Weight), len(l.Weight[0])
}

func (l *layerParams) apply(in []float64) []float64 {
	out := make([]float64, len(l.Weight))
	for i, row := range l.Weight {
		s := l.Bias[i]
		for j, w := range row {
			s += w * in[j]
		}
		out[i] = s
	}
	return out
}

// classifierParams is the exported parameter file. Normalization layers
// from training are folded into the adjacent linear weights before export,
// so inference is matrix products and ReLU only.
type classifierParams struct {
	EmbedDim       int         `json:"embed_dim"`
	TextCompressor layerParams `json:"text_compressor"`
	StructHidden   layerParams `json:"struct_hidden"`
	StructOut      layerParams `json:"struct_out"`
	HeadHidden     layerParams `json:"head_hidden"`
	HeadOut        layerParams `json:"head_out"`
}

// Classifier is the hybrid gating model: a compressed semantic stream and
// an expanded state stream, fused through a small feed-forward head.
// Parameters are loaded once and read-only, so Classify is safe under
// concurrent invocation.
type Classifier struct {
	params *classifierParams
}

// LoadClassifier reads the parameter file and validates every layer shape
// against the fixed architecture.
func LoadClassifier(path string) (*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gating model: %w", err)
	}
	var p classifierParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse gating model: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("gating model %s: %w", path, err)
	}
	return &Classifier{params: &p}, nil
}

func (p *classifierParams) validate() error {
	checks := []struct {
		name    string
		layer   *layerParams
		out, in int
	}{
		{"text_compressor", &p.TextCompressor, textBottleneckDim, p.EmbedDim},
		{"struct_hidden", &p.StructHidden, 64, StructDim},
		{"struct_out", &p.StructOut, structExpandedDim, 64},
		{"head_hidden", &p.HeadHidden, 64, textBottleneckDim + structExpandedDim},
		{"head_out", &p.HeadOut, NumStages, 64},
	}
	for _, c := range checks {
		out, in := c.layer.dims()
		if out != c.out || in != c.in {
			return fmt.Errorf("layer %s: want %dx%d, got %dx%d", c.name, c.out, c.in, out, in)
		}
		if len(c.layer.Bias) != c.out {
			return fmt.Errorf("layer %s: bias length %d, want %d", c.name, len(c.layer.Bias), c.out)
		}
	}
	return nil
}

func relu(v []float64) []float64 {
	for i, x := range v {
		if x < 0 {
			v[i] = 0
		}
	}
	return v
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, x := range logits[1:] {
		if x > max {
			max = x
		}
	}
	var sum float64
	out := make([]float64, len(logits))
	for i, x := range logits {
		out[i] = math.Exp(x - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Classify maps (text embedding, structured features) to a probability
// distribution over the three stages. Pure function of its inputs and the
// loaded parameters.
func (c *Classifier) Classify(embedding []float32, features []float64) ([]float64, error) {
	if c == nil || c.params == nil {
		return nil, &domain.InferenceFailure{
			Component: "gating",
			Err:       fmt.Errorf("gating model not loaded"),
		}
	}
	if len(embedding) != c.params.EmbedDim {
		return nil, &domain.InferenceFailure{
			Component: "gating",
			Err:       fmt.Errorf("embedding width %d, model expects %d", len(embedding), c.params.EmbedDim),
		}
	}
	if len(features) != StructDim {
		return nil, &domain.InferenceFailure{
			Component: "gating",
			Err:       fmt.Errorf("feature width %d, model expects %d", len(features), StructDim),
		}
	}

	text := make([]float64, len(embedding))
	for i, v := range embedding {
		text[i] = float64(v)
	}
	text = relu(c.params.TextCompressor.apply(text))

	state := relu(c.params.StructHidden.apply(features))
	state = relu(c.params.StructOut.apply(state))

	fused := make([]float64, 0, len(text)+len(state))
	fused = append(fused, text...)
	fused = append(fused, state...)

	hidden := relu(c.params.HeadHidden.apply(fused))
	return softmax(c.params.HeadOut.apply(hidden)), nil
}
