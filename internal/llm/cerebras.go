package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/finloop/loandesk/internal/domain"
)

const (
	cerebrasAPIURL = "https://api.cerebras.ai/v1/chat/completions"
	cerebrasModel  = "llama-3.3-70b"
)

type CerebrasClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewCerebrasClient(apiKey string) *CerebrasClient {
	return &CerebrasClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// Cerebras uses OpenAI-compatible request/response format
type cerebrasMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type cerebrasRequest struct {
	Model       string            `json:"model"`
	Messages    []cerebrasMessage `json:"messages"`
	Temperature float32           `json:"temperature"`
}

type cerebrasResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *CerebrasClient) Generate(ctx context.Context, profile domain.PromptProfile, input string) (string, error) {
	body, err := json.Marshal(cerebrasRequest{
		Model: cerebrasModel,
		Messages: []cerebrasMessage{
			{Role: "system", Content: instructionFor(profile)},
			{Role: "user", Content: input},
		},
		Temperature: temperatureFor(profile),
	})
	if err != nil {
		return "", fmt.Errorf("marshal cerebras request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cerebrasAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create cerebras request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.InferenceFailure{Component: "cerebras", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.InferenceFailure{Component: "cerebras", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &domain.InferenceFailure{
			Component: "cerebras",
			Err:       fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var result cerebrasResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &domain.ParseFailure{Raw: string(respBody), Err: err}
	}

	if result.Error != nil {
		return "", &domain.InferenceFailure{
			Component: "cerebras",
			Err:       fmt.Errorf("API error: %s", result.Error.Message),
		}
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", &domain.ParseFailure{Raw: string(respBody), Err: fmt.Errorf("empty completion")}
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
