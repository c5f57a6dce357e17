package jwthelper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	t.Parallel()

	key := []byte("signing-key")
	token, err := GenerateToken(key, "+50933334444", "member", "curl/8.0")
	require.NoError(t, err)

	claims, err := ParseToken(key, token)
	require.NoError(t, err)
	assert.Equal(t, "+50933334444", claims.Identity)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, "curl/8.0", claims.UserAgent)

	_, err = ParseToken([]byte("other-key"), token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(key, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
