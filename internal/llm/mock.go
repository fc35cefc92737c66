package llm

import (
	"context"

	"github.com/finloop/loandesk/internal/domain"
)

// MockClient is a configurable LLM client for testing.
// Set Responses per prompt profile, or Err to simulate a failing provider.
type MockClient struct {
	Responses map[domain.PromptProfile]string
	Err       error

	// Call tracking for assertions
	Calls []MockCall
}

type MockCall struct {
	Profile domain.PromptProfile
	Input   string
}

func NewMockClient() *MockClient {
	return &MockClient{
		Responses: map[domain.PromptProfile]string{
			domain.PromptVerification: `{"risk_level":"LOW","check_status":"MATCHED","rationale":"all fields consistent"}`,
			domain.PromptDecision:     `{"outcome":"APPROVE","rationale":"within policy"}`,
			domain.PromptConsult:      "Mock consultation answer.",
			domain.PromptGuide:        "Mock guidance reply.",
		},
	}
}

func (c *MockClient) Generate(ctx context.Context, profile domain.PromptProfile, input string) (string, error) {
	c.Calls = append(c.Calls, MockCall{Profile: profile, Input: input})
	if c.Err != nil {
		return "", c.Err
	}
	return c.Responses[profile], nil
}

// Reset clears recorded calls and restores default responses.
func (c *MockClient) Reset() {
	*c = *NewMockClient()
}
