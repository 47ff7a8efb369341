package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	id := uuid.New()

	access, refresh, err := m.GenerateTokens(id)
	require.NoError(t, err)

	got, err := m.ValidateToken(access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = m.ValidateToken(refresh, TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = m.ValidateToken(refresh, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	access, _, err := NewTokenManager("one", time.Hour).GenerateTokens(uuid.New())
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Hour).ValidateToken(access, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("one", time.Hour).ValidateToken("not-a-token", TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter2"))
	assert.False(t, CheckPassword(hash, "hunter3"))
}
