package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"wellness/wellness/config"
	httputils "wellness/wellness/utils/http"
	"wellness/wellness/utils/logging"

	"go.uber.org/zap"
)

// ErrBlocked means the provider refused the request on content safety grounds.
var ErrBlocked = errors.New("llm: request blocked by content filter")

// ErrStreamIncomplete means the provider stream ended before its terminator.
var ErrStreamIncomplete = errors.New("llm: stream ended before completion")

// Chunk is one streamed delta. A chunk with Err set is the last one sent.
type Chunk struct {
	Text string
	Err  error
}

// Client is what every provider implements. RunStream closes the channel when
// the answer is complete or ctx ends; a failure mid-stream arrives as a final
// Chunk with Err set.
type Client interface {
	Run(ctx context.Context, req ChatRequest) (string, error)
	RunStream(ctx context.Context, req ChatRequest) (<-chan Chunk, error)
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Options     any       `json:"options,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func System(content string) Message    { return Message{Role: "system", Content: content} }
func User(content string) Message      { return Message{Role: "user", Content: content} }
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }

// New picks the provider named by cfg.LLMProvider.
func New(cfg config.Config) (Client, error) {
	switch strings.ToLower(cfg.LLMProvider) {
	case "openai", "":
		return NewGPTClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	case "groq":
		return NewGroqClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel), nil
	case "ollama":
		return NewOllamaClient(cfg.LLMBaseURL, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// Collect drains a stream into one string. It returns the text received so
// far together with the stream's error, if any.
func Collect(ctx context.Context, ch <-chan Chunk) (string, error) {
	var sb strings.Builder
	for c := range ch {
		if c.Err != nil {
			return sb.String(), c.Err
		}
		sb.WriteString(c.Text)
	}
	return sb.String(), ctx.Err()
}

// send delivers c unless ctx ends first.
func send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

type OllamaClient struct {
	baseURL string
	model   string
}

func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{baseURL: strings.TrimRight(baseURL, "/") + "/api", model: model}
}

type ollamaResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func (c *OllamaClient) withDefaults(req ChatRequest, stream bool) ChatRequest {
	if req.Model == "" {
		req.Model = c.model
	}
	req.Stream = stream
	return req
}

func (c *OllamaClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "ollama_run")()
	var resp ollamaResponse
	if err := httputils.PostJSON(ctx, c.baseURL+"/chat", c.withDefaults(req, false), &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

func (c *OllamaClient) RunStream(ctx context.Context, req ChatRequest) (<-chan Chunk, error) {
	defer logging.LogDuration(ctx, "ollama_run_stream")()

	body, err := httputils.PostStream(ctx, c.baseURL+"/chat", c.withDefaults(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan Chunk)

	go func() {
		defer func() {
			close(ch)
			body.Close()
		}()

		decoder := json.NewDecoder(body)

		for {
			if ctx.Err() != nil {
				logging.AppLogger.Info("ollama stream context cancelled")
				return
			}

			var chunk ollamaResponse
			if err := decoder.Decode(&chunk); err != nil {
				if err == io.EOF {
					err = ErrStreamIncomplete
				} else {
					logging.ErrorLogger.Error("ollama stream decode error", zap.Error(err))
				}
				send(ctx, ch, Chunk{Err: err})
				return
			}
			if chunk.Message.Content != "" && !send(ctx, ch, Chunk{Text: chunk.Message.Content}) {
				return
			}
			if chunk.Done {
				return
			}
		}
	}()

	return ch, nil
}
