package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	t.Run("round trip", func(t *testing.T) {
		token, err := tm.GenerateToken("qa-lead-7", "reviewer")
		require.NoError(t, err)

		claims, err := tm.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "qa-lead-7", claims.Subject)
		assert.Equal(t, "reviewer", claims.Role)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		token, err := tm.GenerateToken("qa-lead-7", "reviewer")
		require.NoError(t, err)

		other := NewTokenManager("different-secret", time.Hour)
		_, err = other.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		short := NewTokenManager("test-secret", time.Nanosecond)
		token, err := short.GenerateToken("qa-lead-7", "")
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		_, err = short.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := tm.ValidateToken("not.a.token")
		assert.Error(t, err)
	})
}
