package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/finloop/loandesk/internal/domain"
)

const (
	openAIEmbeddingURL = "https://api.openai.com/v1/embeddings"
	model              = "text-embedding-3-small"
)

type OpenAIClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns the vector for text. Transport and API errors surface as
// *domain.InferenceFailure so the gating classifier can fall back cleanly.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model: model,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIEmbeddingURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.InferenceFailure{Component: "embedding", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.InferenceFailure{Component: "embedding", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.InferenceFailure{
			Component: "embedding",
			Err:       fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var result embeddingResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &domain.ParseFailure{Raw: string(respBody), Err: err}
	}

	if result.Error != nil {
		return nil, &domain.InferenceFailure{
			Component: "embedding",
			Err:       fmt.Errorf("API error: %s", result.Error.Message),
		}
	}

	if len(result.Data) == 0 {
		return nil, &domain.ParseFailure{Raw: string(respBody), Err: fmt.Errorf("no embedding data returned")}
	}

	return result.Data[0].Embedding, nil
}
