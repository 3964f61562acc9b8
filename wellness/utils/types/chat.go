package types

import (
	"encoding/json"
	"time"

	"wellness/wellness/sources/psql/models"
)

// QueryRequest is the body of POST /docs. ConversationHistory stays raw so a
// non-array value can be reported instead of failing the whole decode.
type QueryRequest struct {
	Question            string          `json:"question"`
	RequestSessionID    string          `json:"requestSessionId,omitempty"`
	ConversationHistory json.RawMessage `json:"conversation_history,omitempty"`
	ModelID             string          `json:"modelId,omitempty"`
}

type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type QueryResponse struct {
	Response       string  `json:"response"`
	Citation       *string `json:"citation"`
	SessionID      string  `json:"sessionId,omitempty"`
	RAGUsed        bool    `json:"rag_used,omitempty"`
	FallbackUsed   bool    `json:"fallback_used,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
}

// For the session list in the sidebar
type ChatSessionSummary struct {
	SessionID    string    `json:"sessionId"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

type CreateSessionRequest struct {
	Title    string               `json:"title,omitempty"`
	Messages []models.ChatMessage `json:"messages,omitempty"`
}

// UpdateSessionRequest: Message appends one message, Messages replaces the list.
type UpdateSessionRequest struct {
	Title    *string               `json:"title,omitempty"`
	Message  *models.ChatMessage   `json:"message,omitempty"`
	Messages *[]models.ChatMessage `json:"messages,omitempty"`
}

type GenerateTitleRequest struct {
	Message   string `json:"message"`
	MaxLength int    `json:"max_length,omitempty"`
}

// StreamRequest is the first frame a websocket client sends.
type StreamRequest struct {
	Token               string          `json:"token"`
	Question            string          `json:"question"`
	SessionID           string          `json:"sessionId,omitempty"`
	ConversationHistory json.RawMessage `json:"conversation_history,omitempty"`
}

type StreamFrame struct {
	Type         string  `json:"type"`
	Content      string  `json:"content,omitempty"`
	SessionID    string  `json:"sessionId,omitempty"`
	Citation     *string `json:"citation,omitempty"`
	RAGUsed      bool    `json:"rag_used,omitempty"`
	FallbackUsed bool    `json:"fallback_used,omitempty"`
	Error        string  `json:"error,omitempty"`
}
