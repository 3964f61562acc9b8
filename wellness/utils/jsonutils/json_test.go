package jsonutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"fenced", "Here you go:\n```json\n{\"a\": 1}\n```\nthanks", `{"a": 1}`},
		{"plain fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Sure! {"title":"Walk"} Hope that helps {"x":2}`, `{"title":"Walk"}`},
		{"brace in string", `{"d":"use {curly} braces"} tail}`, `{"d":"use {curly} braces"}`},
		{"trailing comma", `{"a":[1,2,],}`, `{"a":[1,2]}`},
		{"escaped", `{\"a\":\"b\"}`, `{"a":"b"}`},
		{"zero width", "\uFEFF{\"a\":1}\u200B", `{"a":1}`},
		{"none", "no json here", "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestDecode(t *testing.T) {
	var rec struct {
		Title    string `json:"title"`
		Category string `json:"category"`
	}
	require.NoError(t, Decode("```json\n{\"title\":\"Family walk\",\"category\":\"fitness\",}\n```", &rec))
	assert.Equal(t, "Family walk", rec.Title)
	assert.Equal(t, "fitness", rec.Category)

	assert.ErrorIs(t, Decode("I cannot help with that.", &rec), ErrNoObject)
	assert.Error(t, Decode(`{"title": }`, &rec))
}
