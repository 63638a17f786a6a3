package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, now *time.Time) *TokenManager {
	t.Helper()
	codec, err := NewTokenCodec(testKey, "todoapp", "todoapp-client")
	require.NoError(t, err)
	clock := func() time.Time { return *now }
	codec.now = clock

	registry := NewRevocationRegistry()
	registry.now = clock

	m := NewTokenManager(codec, registry, 15*time.Minute, 24*time.Hour)
	m.now = clock
	return m
}

func TestIssueAndValidateAccess(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := newTestManager(t, &now)

	token, err := m.IssueAccessToken("valid_user1")
	require.NoError(t, err)

	claims, err := m.ValidateAccess(token, "valid_user1")
	require.NoError(t, err)
	assert.Equal(t, "valid_user1", claims.Subject)

	subject, err := m.Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "valid_user1", subject)

	_, err = m.ValidateAccess(token, "someone_else")
	assert.ErrorIs(t, err, ErrTokenSubjectMismatch)

	_, err = m.ValidateRefresh(token, "valid_user1")
	assert.ErrorIs(t, err, ErrTokenKindMismatch)
}

func TestRefreshTokenNotAcceptedAsAccess(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := newTestManager(t, &now)

	pair, err := m.IssuePair("u1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.EqualValues(t, 900, pair.ExpiresIn)

	_, err = m.ValidateAccess(pair.RefreshToken, "u1")
	assert.ErrorIs(t, err, ErrTokenKindMismatch)
	_, err = m.ValidateRefresh(pair.RefreshToken, "u1")
	assert.NoError(t, err)
}

func TestRevokeBlocksUntilExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := newTestManager(t, &now)

	token, err := m.IssueAccessToken("u1")
	require.NoError(t, err)
	m.Revoke(token)
	m.Revoke(token)

	_, err = m.ValidateAccess(token, "u1")
	assert.ErrorIs(t, err, ErrTokenRevoked)
	assert.Equal(t, 1, m.Revocations().Len())

	now = now.Add(16 * time.Minute)
	_, err = m.ValidateAccess(token, "u1")
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, 1, m.Revocations().Sweep())
}

func TestRevokeMalformedUsesRawToken(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := newTestManager(t, &now)

	m.Revoke("not-a-token")
	assert.True(t, m.Revocations().IsRevoked("not-a-token"))

	now = now.Add(23 * time.Hour)
	assert.Zero(t, m.Revocations().Sweep())
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, m.Revocations().Sweep())
}

func TestValidateExpiredNeverRevoked(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m := newTestManager(t, &now)

	token, err := m.IssueAccessToken("u1")
	require.NoError(t, err)
	now = now.Add(time.Hour)

	_, err = m.ValidateAccess(token, "u1")
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, "expired", TokenFailureReason(err))
}
