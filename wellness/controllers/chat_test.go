package controllers

import (
	"context"
	"errors"
	"testing"

	"wellness/wellness/prompts"
	"wellness/wellness/services/llm/llmtest"
	"wellness/wellness/sources/psql/dao"
	"wellness/wellness/sources/psql/models"
	"wellness/wellness/utils/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSessions(t *testing.T) {
	e := newEnv(t)
	ctrl := NewChatController(dao.NewChatSessionDAO(e.db), llmtest.Text(""), "fast", prompts.Default())
	ctx := context.Background()

	s, err := ctrl.CreateSession(ctx, "u1", types.CreateSessionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", s.Title)
	assert.Empty(t, s.Messages)

	_, err = ctrl.CreateSession(ctx, "u1", types.CreateSessionRequest{
		Messages: []models.ChatMessage{{Role: "system", Content: "x"}},
	})
	assert.ErrorIs(t, err, ErrBadRequest)

	title := "  Sleep routines "
	updated, err := ctrl.UpdateSession(ctx, "u1", s.ID, types.UpdateSessionRequest{
		Title:   &title,
		Message: &models.ChatMessage{Role: "user", Content: "How much sleep does an 8 year old need?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sleep routines", updated.Title)
	require.Len(t, updated.Messages, 1)
	assert.NotEmpty(t, updated.Messages[0].ID)
	assert.False(t, updated.Messages[0].Timestamp.IsZero())

	require.NoError(t, ctrl.AppendExchange(ctx, "u1", s.ID, "and adults?", "Seven to nine hours."))
	got, err := ctrl.GetSession(ctx, "u1", s.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "assistant", got.Messages[2].Role)

	list, err := ctrl.ListSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].MessageCount)

	// other users never see the session
	_, err = ctrl.GetSession(ctx, "u2", s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, ctrl.AppendExchange(ctx, "u2", s.ID, "q", "a"), ErrNotFound)
	_, err = ctrl.DeleteSession(ctx, "u2", s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ctrl.DeleteSession(ctx, "u1", s.ID)
	require.NoError(t, err)
	_, err = ctrl.GetSession(ctx, "u1", s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateTitle(t *testing.T) {
	tests := []struct {
		name    string
		reply   llmtest.Reply
		message string
		max     int
		want    string
	}{
		{
			name:    "model title cleaned",
			reply:   llmtest.Reply{Text: "Title: \"Bedtime Tips for Kids.\"\nextra line"},
			message: "what time should my kids go to bed",
			want:    "Bedtime Tips for Kids",
		},
		{
			name:    "model failure uses message",
			reply:   llmtest.Reply{Err: errors.New("timeout")},
			message: "Healthy lunch ideas",
			want:    "Healthy lunch ideas",
		},
		{
			name:    "cut on word boundary",
			reply:   llmtest.Reply{Text: ""},
			message: "Planning a family hiking weekend in the mountains",
			max:     20,
			want:    "Planning a family",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			client := llmtest.New(tt.reply)
			ctrl := NewChatController(dao.NewChatSessionDAO(e.db), client, "fast", prompts.Default())

			got, err := ctrl.GenerateTitle(context.Background(), types.GenerateTitleRequest{Message: tt.message, MaxLength: tt.max})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "fast", client.Requests[0].Model)
		})
	}

	e := newEnv(t)
	ctrl := NewChatController(dao.NewChatSessionDAO(e.db), llmtest.Text("x"), "fast", prompts.Default())
	_, err := ctrl.GenerateTitle(context.Background(), types.GenerateTitleRequest{Message: "  "})
	assert.ErrorIs(t, err, ErrBadRequest)
}
