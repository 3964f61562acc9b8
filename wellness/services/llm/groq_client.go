package llm

import (
	"context"
	"fmt"
	"strings"

	httputils "wellness/wellness/utils/http"
	"wellness/wellness/utils/logging"
)

type GroqClient struct {
	baseURL string
	apiKey  string
	model   string
}

// NewGroqClient points at Groq's OpenAI compatible API unless baseURL overrides it.
func NewGroqClient(apiKey, baseURL, model string) *GroqClient {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return &GroqClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

func (c *GroqClient) withDefaults(req ChatRequest, stream bool) ChatRequest {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = stream
	req.Options = nil
	return req
}

func (c *GroqClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "groq_run")()

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	var resp gptResponse
	if err := httputils.PostJSONWithAuth(ctx, url, c.apiKey, c.withDefaults(req, false), &resp); err != nil {
		return "", asBlocked(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	if resp.Choices[0].FinishReason == "content_filter" {
		return "", ErrBlocked
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *GroqClient) RunStream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	defer logging.LogDuration(ctx, "groq_run_stream")()

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	body, err := httputils.PostStreamWithAuth(ctx, url, c.apiKey, c.withDefaults(req, true))
	if err != nil {
		return nil, asBlocked(err)
	}
	return streamSSE(ctx, body, "groq"), nil
}
