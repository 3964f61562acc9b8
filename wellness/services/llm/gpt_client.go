package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	httputils "wellness/wellness/utils/http"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// GPTClient talks to any OpenAI compatible chat completions endpoint.
type GPTClient struct {
	apiKey  string
	baseURL string
	model   string
}

func NewGPTClient(apiKey, baseURL, model string) (*GPTClient, error) {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if apiKey == "" && baseURL == defaultOpenAIBaseURL {
		return nil, errors.New("missing LLM_API_KEY for openai provider")
	}
	return &GPTClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/") + "/chat/completions",
		model:   model,
	}, nil
}

type gptChoice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type gptResponse struct {
	Choices []gptChoice `json:"choices"`
}

type gptStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *GPTClient) withDefaults(req ChatRequest, stream bool) ChatRequest {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = stream
	req.Options = nil
	return req
}

// Run executes a single completion request.
func (c *GPTClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "gpt_run")()

	var parsed gptResponse
	if err := httputils.PostJSONWithAuth(ctx, c.baseURL, c.apiKey, c.withDefaults(req, false), &parsed); err != nil {
		return "", asBlocked(err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no content in completion response")
	}
	if parsed.Choices[0].FinishReason == "content_filter" {
		return "", ErrBlocked
	}
	return parsed.Choices[0].Message.Content, nil
}

// RunStream reads server sent events and forwards content deltas.
func (c *GPTClient) RunStream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	defer logging.LogDuration(ctx, "gpt_run_stream")()

	body, err := httputils.PostStreamWithAuth(ctx, c.baseURL, c.apiKey, c.withDefaults(req, true))
	if err != nil {
		return nil, asBlocked(err)
	}
	return streamSSE(ctx, body, "gpt"), nil
}

// asBlocked maps a provider content policy rejection to ErrBlocked.
func asBlocked(err error) error {
	var se *httputils.StatusError
	if errors.As(err, &se) && se.Code == http.StatusBadRequest && strings.Contains(se.Body, "content_filter") {
		return ErrBlocked
	}
	return err
}

// streamSSE forwards content deltas until [DONE]. A content filter stop,
// a malformed frame or a body that ends early is sent as a final error chunk.
func streamSSE(ctx context.Context, body io.ReadCloser, provider string) <-chan Chunk {
	ch := make(chan Chunk)

	go func() {
		defer func() {
			close(ch)
			body.Close()
		}()

		fail := func(err error) {
			send(ctx, ch, Chunk{Err: err})
		}
		reader := bufio.NewReader(body)

		for {
			if ctx.Err() != nil {
				logging.AppLogger.Info("llm stream context cancelled", zap.String("provider", provider))
				return
			}

			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					err = ErrStreamIncomplete
				} else {
					logging.ErrorLogger.Error("llm stream read error", zap.String("provider", provider), zap.Error(err))
				}
				fail(err)
				return
			}

			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk gptStreamResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				logging.ErrorLogger.Error("llm stream JSON parse error",
					zap.String("provider", provider), zap.Error(err))
				fail(fmt.Errorf("%s stream frame: %w", provider, err))
				return
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" && !send(ctx, ch, Chunk{Text: choice.Delta.Content}) {
					return
				}
				if choice.FinishReason == "content_filter" {
					logging.AppLogger.Warn("llm stream stopped by content filter", zap.String("provider", provider))
					fail(ErrBlocked)
					return
				}
			}
		}
	}()

	return ch
}
