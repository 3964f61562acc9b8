package controllers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"wellness/wellness/prompts"
	"wellness/wellness/services/llm"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/logging"
	"wellness/wellness/utils/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	defaultSessionTitle = "New Conversation"
	defaultTitleLength  = 50
)

type ChatController struct {
	sessionDAO *dao.ChatSessionDAO
	llm        llm.Client
	model      string
	prompts    *prompts.Catalog
}

// NewChatController takes the fast model used for titles.
func NewChatController(sessionDAO *dao.ChatSessionDAO, client llm.Client, model string, catalog *prompts.Catalog) *ChatController {
	return &ChatController{
		sessionDAO: sessionDAO,
		llm:        client,
		model:      model,
		prompts:    catalog,
	}
}

func (c *ChatController) ListSessions(ctx context.Context, userID string) ([]types.ChatSessionSummary, error) {
	sessions, err := c.sessionDAO.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]types.ChatSessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, types.ChatSessionSummary{
			SessionID:    s.ID,
			Title:        s.Title,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
			MessageCount: len(s.Messages),
		})
	}
	return out, nil
}

func (c *ChatController) GetSession(ctx context.Context, userID, id string) (*models.ChatSession, error) {
	s, err := c.sessionDAO.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, notFound("Session not found")
	}
	return s, nil
}

func normalizeMessage(m models.ChatMessage) (models.ChatMessage, error) {
	if m.Role != "user" && m.Role != "assistant" {
		return m, badRequest("Message role must be user or assistant")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return m, nil
}

func normalizeMessages(in []models.ChatMessage) (datatypes.JSONSlice[models.ChatMessage], error) {
	out := make(datatypes.JSONSlice[models.ChatMessage], 0, len(in))
	for _, m := range in {
		m, err := normalizeMessage(m)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *ChatController) CreateSession(ctx context.Context, userID string, req types.CreateSessionRequest) (*models.ChatSession, error) {
	msgs, err := normalizeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultSessionTitle
	}
	s := &models.ChatSession{UserID: userID, Title: title, Messages: msgs}
	if err := c.sessionDAO.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *ChatController) UpdateSession(ctx context.Context, userID, id string, req types.UpdateSessionRequest) (*models.ChatSession, error) {
	s, err := c.GetSession(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		s.Title = strings.TrimSpace(*req.Title)
	}
	if req.Messages != nil {
		msgs, err := normalizeMessages(*req.Messages)
		if err != nil {
			return nil, err
		}
		s.Messages = msgs
	}
	if req.Message != nil {
		m, err := normalizeMessage(*req.Message)
		if err != nil {
			return nil, err
		}
		s.Messages = append(s.Messages, m)
	}
	s.UpdatedAt = time.Now().UTC()
	if err := c.sessionDAO.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// AppendExchange stores a question and its answer on an existing session.
func (c *ChatController) AppendExchange(ctx context.Context, userID, id, question, answer string) error {
	now := time.Now().UTC()
	s, err := c.sessionDAO.AppendMessages(ctx, userID, id,
		models.ChatMessage{ID: uuid.NewString(), Role: "user", Content: question, Timestamp: now},
		models.ChatMessage{ID: uuid.NewString(), Role: "assistant", Content: answer, Timestamp: now},
	)
	if err != nil {
		return err
	}
	if s == nil {
		return notFound("Session not found")
	}
	return nil
}

func (c *ChatController) DeleteSession(ctx context.Context, userID, id string) (map[string]string, error) {
	ok, err := c.sessionDAO.Delete(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("Session not found")
	}
	return map[string]string{"message": "Session deleted successfully", "sessionId": id}, nil
}

// GenerateTitle asks the fast model for a short session title. When the model
// fails the opening words of the message are used instead.
func (c *ChatController) GenerateTitle(ctx context.Context, req types.GenerateTitleRequest) (string, error) {
	defer logging.LogDuration(ctx, "generate_title")()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return "", badRequest("Message is required")
	}
	maxLen := req.MaxLength
	if maxLen <= 0 {
		maxLen = defaultTitleLength
	}

	prompt := c.prompts.Render(prompts.Title, map[string]string{
		"max_length": strconv.Itoa(maxLen),
		"message":    message,
	})
	temp := 0.3
	out, err := c.llm.Run(ctx, llm.ChatRequest{
		Model:       c.model,
		Messages:    []llm.Message{llm.User(prompt)},
		MaxTokens:   100,
		Temperature: &temp,
	})
	title := cleanTitle(out)
	if err != nil || title == "" {
		logging.ErrorLogger.Warn("title generation fell back", zap.Error(err))
		title = message
	}
	return cutTitle(title, maxLen), nil
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.TrimPrefix(s, "Title:")
	s = strings.Trim(strings.TrimSpace(s), `"'`+"`")
	return strings.TrimRight(s, ".!?,;: ")
}

// cutTitle shortens s to max runes, backing off to the last word boundary.
func cutTitle(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	cut := string(r[:max])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
