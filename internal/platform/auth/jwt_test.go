package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/fleet-api/internal/platform/auth"
)

const testSecret = "test-secret-for-unit-tests"

func TestIssueAndParse_Roundtrip(t *testing.T) {
	token, err := auth.Issue(42, testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auth.Parse(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestParse_ExpiredToken(t *testing.T) {
	token, err := auth.Issue(42, testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = auth.Parse(token, testSecret)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestParse_WrongSecret(t *testing.T) {
	token, err := auth.Issue(42, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = auth.Parse(token, "a-different-secret")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParse_Garbage(t *testing.T) {
	for _, tok := range []string{"", "not-a-token", "a.b.c"} {
		_, err := auth.Parse(tok, testSecret)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	}
}
