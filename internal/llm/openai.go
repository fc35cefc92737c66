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
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	chatModel     = "gpt-4o-mini"
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

// chat types for OpenAI API
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate runs one completion under the given prompt profile. Transport
// and API errors surface as *domain.InferenceFailure; a transport-level
// success with no usable content is a *domain.ParseFailure, so callers can
// always tell the two apart.
func (c *OpenAIClient) Generate(ctx context.Context, profile domain.PromptProfile, input string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: instructionFor(profile)},
			{Role: "user", Content: input},
		},
		Temperature: temperatureFor(profile),
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.InferenceFailure{Component: "openai", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.InferenceFailure{Component: "openai", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &domain.InferenceFailure{
			Component: "openai",
			Err:       fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &domain.ParseFailure{Raw: string(respBody), Err: err}
	}

	if result.Error != nil {
		return "", &domain.InferenceFailure{
			Component: "openai",
			Err:       fmt.Errorf("API error: %s", result.Error.Message),
		}
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", &domain.ParseFailure{Raw: string(respBody), Err: fmt.Errorf("empty completion")}
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
