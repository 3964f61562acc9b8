// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"wellness/wellness/services/llm"
)

// Reply is one scripted answer. Err takes precedence over Text. StreamErr is
// sent by RunStream after Text, as a provider failing mid-answer would.
type Reply struct {
	Text      string
	Err       error
	StreamErr error
}

// Client answers with its replies in order and repeats the last one when
// they run out. Every request is kept for assertions.
type Client struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []llm.ChatRequest
}

func New(replies ...Reply) *Client {
	return &Client{replies: replies}
}

// Text is shorthand for a client that always answers text.
func Text(text string) *Client {
	return New(Reply{Text: text})
}

func (c *Client) next(req llm.ChatRequest) Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if len(c.replies) == 0 {
		return Reply{}
	}
	r := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return r
}

func (c *Client) Run(ctx context.Context, req llm.ChatRequest) (string, error) {
	r := c.next(req)
	return r.Text, r.Err
}

// RunStream splits the reply on spaces so consumers see several deltas.
func (c *Client) RunStream(ctx context.Context, req llm.ChatRequest) (<-chan llm.Chunk, error) {
	r := c.next(req)
	if r.Err != nil {
		return nil, r.Err
	}
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		chunks := make([]llm.Chunk, 0, 8)
		for _, p := range strings.SplitAfter(r.Text, " ") {
			if p != "" {
				chunks = append(chunks, llm.Chunk{Text: p})
			}
		}
		if r.StreamErr != nil {
			chunks = append(chunks, llm.Chunk{Err: r.StreamErr})
		}
		for _, chunk := range chunks {
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Calls returns how many requests were made.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// LastPrompt returns the content of the last message of the last request.
func (c *Client) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Requests) == 0 {
		return ""
	}
	msgs := c.Requests[len(c.Requests)-1].Messages
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}
