package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"orderbridge/internal/auth"
)

func signOperatorToken(t *testing.T, secret string) string {
	t.Helper()
	tok, err := auth.SignHS256([]byte(secret), map[string]any{"sub": "ops", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	return tok
}
