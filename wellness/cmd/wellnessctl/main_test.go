package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"setup-test-user", "cleanup-user", "kb-sync", "doc-status", "ask"})
}

func TestRequiredFlags(t *testing.T) {
	tests := []struct {
		args []string
		msg  string
	}{
		{[]string{"setup-test-user"}, `required flag(s) "email", "password" not set`},
		{[]string{"cleanup-user"}, `required flag(s) "email" not set`},
		{[]string{"doc-status", "--user", "u1"}, `required flag(s) "id" not set`},
		{[]string{"ask", "--user", "u1"}, `required flag(s) "question" not set`},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCleanupUser_NeedsConfirmation(t *testing.T) {
	_, err := run(t, "cleanup-user", "--email", "a@example.com")
	assert.EqualError(t, err, "refusing to delete without --yes")
}

func TestResolveUser_PassesIDsThrough(t *testing.T) {
	id, err := resolveUser(context.Background(), nil, "3f2b8c1e-1111-4222-8333-944455556666")
	require.NoError(t, err)
	assert.Equal(t, "3f2b8c1e-1111-4222-8333-944455556666", id)
}
