package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wellness/wellness/prompts"
	"wellness/wellness/services/activity"
	"wellness/wellness/services/knowledge"
	"wellness/wellness/services/llm"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxQuestionLength = 10_000
	maxHistory        = 20
	answerMaxTokens   = 2000

	blockedMessage     = "Your request was blocked by our content safety policy. Please revise your query."
	unavailableMessage = "Unable to process your request. Please try again later."
)

// Retriever finds passages for a user's question.
type Retriever interface {
	Retrieve(ctx context.Context, userID, query string, k int) ([]knowledge.Result, error)
}

type QueryController struct {
	profiles  *ProfileController
	retriever Retriever
	llm       llm.Client
	model     string
	prompts   *prompts.Catalog
	activity  *activity.Recorder
}

func NewQueryController(profiles *ProfileController, retriever Retriever, client llm.Client, model string, catalog *prompts.Catalog, rec *activity.Recorder) *QueryController {
	return &QueryController{
		profiles:  profiles,
		retriever: retriever,
		llm:       client,
		model:     model,
		prompts:   catalog,
		activity:  rec,
	}
}

func invalidInput(msg string) error {
	return badRequest("Invalid input: " + msg)
}

// ParseHistory decodes conversation_history, keeping the most recent turns.
func ParseHistory(raw json.RawMessage) ([]types.HistoryMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] != '[' {
		return nil, invalidInput("conversation_history must be an array")
	}
	var history []types.HistoryMessage
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, invalidInput("conversation_history must be an array of messages")
	}
	if len(history) > maxHistory {
		logging.AppLogger.Warn("conversation history truncated", zap.Int("from", len(history)), zap.Int("to", maxHistory))
		history = history[len(history)-maxHistory:]
	}
	return history, nil
}

// ProfileContext summarizes a family profile in a few sentences.
func ProfileContext(p *FamilyProfile) string {
	if p == nil {
		return ""
	}
	parts := []string{fmt.Sprintf("The user is %s with %d family member(s) living in %s.",
		p.MaritalStatus, p.NumberOfChildren, p.Location)}

	for i, m := range p.FamilyMembers {
		age := "unknown age"
		if m.Age != nil {
			age = fmt.Sprintf("%d years old", *m.Age)
		}
		info := fmt.Sprintf("Family member %d: %s, %s wellness level.", i+1, age, m.WellnessLevel)
		if len(m.PrimaryGoals) > 0 {
			info += " Goals: " + strings.Join(m.PrimaryGoals, ", ") + "."
		}
		if len(m.CurrentActivities) > 0 {
			acts := make([]string, 0, len(m.CurrentActivities))
			for _, a := range m.CurrentActivities {
				acts = append(acts, fmt.Sprintf("%s (%s)", a.Type, a.Frequency))
			}
			info += " Current activities: " + strings.Join(acts, ", ") + "."
		}
		if len(m.Challenges) > 0 {
			info += " Challenges: " + strings.Join(m.Challenges, ", ") + "."
		}
		parts = append(parts, info)
	}
	if len(p.SupportSystemType) > 0 {
		parts = append(parts, "Available support: "+strings.Join(p.SupportSystemType, ", ")+".")
	}
	return strings.Join(parts, " ")
}

// Ask is one question with its context, shared by the HTTP and websocket paths.
type Ask struct {
	Question  string
	SessionID string
	History   []types.HistoryMessage
	ModelID   string
}

func (c *QueryController) Validate(req types.QueryRequest) (*Ask, error) {
	q := strings.TrimSpace(req.Question)
	if q == "" {
		return nil, invalidInput("Question parameter is required")
	}
	if len([]rune(q)) > maxQuestionLength {
		return nil, invalidInput("Question exceeds maximum length of 10,000 characters")
	}
	history, err := ParseHistory(req.ConversationHistory)
	if err != nil {
		return nil, err
	}
	return &Ask{Question: q, SessionID: req.RequestSessionID, History: history, ModelID: req.ModelID}, nil
}

func (c *QueryController) Query(ctx context.Context, userID string, req types.QueryRequest) (*types.QueryResponse, error) {
	ask, err := c.Validate(req)
	if err != nil {
		return nil, err
	}
	return c.Answer(ctx, userID, *ask, nil)
}

// Answer runs retrieval and generation. When emit is set the answer is
// streamed through it as it is produced.
func (c *QueryController) Answer(ctx context.Context, userID string, ask Ask, emit func(string) error) (*types.QueryResponse, error) {
	defer logging.LogDuration(ctx, "rag_query")()
	started := time.Now()

	if ask.SessionID == "" {
		ask.SessionID = uuid.NewString()
	}

	profile, profileJSON, err := c.profiles.Family(ctx, userID)
	if err != nil {
		logging.ErrorLogger.Warn("profile unavailable for query", zap.String("user_id", userID), zap.Error(err))
	}
	system := c.prompts.System(prettyJSON(profileJSON))
	question := ask.Question
	if pc := ProfileContext(profile); pc != "" {
		question = c.prompts.Render(prompts.QueryEnhanced, map[string]string{"context": pc, "question": ask.Question})
	}

	activityID := c.activity.StartQuery(ctx, userID, ask.SessionID, ask.Question)

	results, rerr := c.retriever.Retrieve(ctx, userID, ask.Question, knowledge.DefaultTopK)
	var resp *types.QueryResponse
	if rerr == nil && len(results) > 0 {
		resp, err = c.grounded(ctx, system, question, ask, results, emit)
		if errors.Is(err, llm.ErrBlocked) {
			return nil, blocked()
		}
		if errors.Is(err, errPartialAnswer) {
			logging.ErrorLogger.Error("grounded answer stream broke", zap.String("user_id", userID), zap.Error(err))
			return nil, &Error{Kind: errUnavailable, Message: unavailableMessage}
		}
		if err != nil {
			logging.ErrorLogger.Error("grounded answer failed", zap.String("user_id", userID), zap.Error(err))
			rerr = err
		}
	}
	if resp == nil {
		if rerr != nil {
			logging.ErrorLogger.Warn("retrieval failed, answering directly", zap.String("user_id", userID), zap.Error(rerr))
		}
		resp, err = c.direct(ctx, system, question, ask, emit)
		if errors.Is(err, llm.ErrBlocked) {
			return nil, blocked()
		}
		if err != nil {
			logging.ErrorLogger.Error("direct answer failed", zap.String("user_id", userID), zap.Error(err))
			return nil, &Error{Kind: errUnavailable, Message: unavailableMessage}
		}
		if rerr != nil {
			resp.FallbackReason = rerr.Error()
		}
	}

	c.activity.FinishQuery(ctx, activityID, resp, started)
	return resp, nil
}

func blocked() error {
	return &Error{Kind: ErrBlocked, Message: blockedMessage}
}

var errUnavailable = errors.New("answer unavailable")

func (c *QueryController) grounded(ctx context.Context, system, question string, ask Ask, results []knowledge.Result, emit func(string) error) (*types.QueryResponse, error) {
	var passages strings.Builder
	for i, r := range results {
		fmt.Fprintf(&passages, "[%d] (%s)\n%s\n\n", i+1, r.SourceURI, r.Content)
	}
	prompt := c.prompts.Render(prompts.RAGAnswer, map[string]string{
		"passages": strings.TrimSpace(passages.String()),
		"question": question,
	})
	text, err := c.complete(ctx, c.messages(system, ask.History, prompt), c.model, emit)
	if err != nil {
		return nil, err
	}
	citation := results[0].SourceURI
	return &types.QueryResponse{
		Response:  text,
		Citation:  &citation,
		SessionID: ask.SessionID,
		RAGUsed:   true,
	}, nil
}

func (c *QueryController) direct(ctx context.Context, system, question string, ask Ask, emit func(string) error) (*types.QueryResponse, error) {
	model := c.model
	if ask.ModelID != "" {
		model = ask.ModelID
	}
	text, err := c.complete(ctx, c.messages(system, ask.History, question), model, emit)
	if err != nil {
		return nil, err
	}
	return &types.QueryResponse{
		Response:     text,
		SessionID:    ask.SessionID,
		FallbackUsed: true,
		Reason:       "no_rag_results",
	}, nil
}

func (c *QueryController) messages(system string, history []types.HistoryMessage, prompt string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.System(system))
	for _, h := range history {
		if h.Role != "user" && h.Role != "assistant" {
			continue
		}
		msgs = append(msgs, llm.Message{Role: h.Role, Content: h.Content})
	}
	return append(msgs, llm.User(prompt))
}

// errPartialAnswer marks a stream that failed after deltas reached the client.
// Falling back to another answer would mix two replies, so the request fails.
var errPartialAnswer = errors.New("stream failed after partial answer")

func (c *QueryController) complete(ctx context.Context, msgs []llm.Message, model string, emit func(string) error) (string, error) {
	req := llm.ChatRequest{Model: model, Messages: msgs, MaxTokens: answerMaxTokens}
	if emit == nil {
		return c.llm.Run(ctx, req)
	}
	req.Stream = true
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := c.llm.RunStream(ctx, req)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			if b.Len() > 0 {
				return "", fmt.Errorf("%w: %w", errPartialAnswer, chunk.Err)
			}
			return "", chunk.Err
		}
		b.WriteString(chunk.Text)
		if err := emit(chunk.Text); err != nil {
			return "", err
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func prettyJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

// QueryErrorBody renders a /docs failure the way clients of that endpoint
// expect: the message sits under "response".
func QueryErrorBody(err error) (int, map[string]any) {
	status := StatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = unavailableMessage
	}
	var ce *Error
	if errors.As(err, &ce) && status < http.StatusInternalServerError {
		msg = ce.Message
	}
	return status, map[string]any{"response": msg, "citation": nil, "sessionId": nil}
}
