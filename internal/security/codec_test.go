package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte(strings.Repeat("k", MinSigningKeyBytes))

func newTestCodec(t *testing.T, now time.Time) *TokenCodec {
	t.Helper()
	c, err := NewTokenCodec(testKey, "todoapp", "todoapp-client")
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	return c
}

func TestNewTokenCodecRejectsShortKey(t *testing.T) {
	_, err := NewTokenCodec([]byte("short"), "todoapp", "todoapp-client")
	assert.ErrorIs(t, err, ErrSigningKeyTooShort)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := newTestCodec(t, now)

	token, err := c.Encode("valid_user1", map[string]interface{}{"role": "user", "sub": "intruder", "type": "refresh"}, TokenAccess, time.Hour)
	require.NoError(t, err)

	claims, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "valid_user1", claims.Subject)
	assert.Equal(t, TokenAccess, claims.Kind)
	assert.True(t, claims.IssuedAt.Equal(now))
	assert.True(t, claims.ExpiresAt.Equal(now.Add(time.Hour)))
	assert.Equal(t, "user", claims.Extra["role"])
	assert.Len(t, claims.ID, 22)
}

func TestEncodeUsesFreshIdentifiers(t *testing.T) {
	c := newTestCodec(t, time.Now())
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		token, err := c.Encode("u1", nil, TokenAccess, time.Minute)
		require.NoError(t, err)
		claims, err := c.Decode(token)
		require.NoError(t, err)
		_, dup := seen[claims.ID]
		require.False(t, dup)
		seen[claims.ID] = struct{}{}
	}
}

func TestDecodeExpired(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := newTestCodec(t, now)
	token, err := c.Encode("u1", nil, TokenAccess, time.Minute)
	require.NoError(t, err)

	c.now = func() time.Time { return now.Add(time.Minute + time.Second) }
	_, err = c.Decode(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestDecodeWrongKey(t *testing.T) {
	now := time.Now()
	c := newTestCodec(t, now)
	other, err := NewTokenCodec([]byte(strings.Repeat("z", 40)), "todoapp", "todoapp-client")
	require.NoError(t, err)

	token, err := other.Encode("u1", nil, TokenAccess, time.Minute)
	require.NoError(t, err)
	_, err = c.Decode(token)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)

	// signature failure wins over expiry
	other.now = func() time.Time { return now.Add(-time.Hour) }
	stale, err := other.Encode("u1", nil, TokenAccess, time.Minute)
	require.NoError(t, err)
	_, err = c.Decode(stale)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestDecodeIssuerAudienceMismatch(t *testing.T) {
	now := time.Now()
	c := newTestCodec(t, now)

	foreign, err := NewTokenCodec(testKey, "someone-else", "todoapp-client")
	require.NoError(t, err)
	token, err := foreign.Encode("u1", nil, TokenAccess, time.Minute)
	require.NoError(t, err)
	_, err = c.Decode(token)
	assert.ErrorIs(t, err, ErrTokenIssuerAudience)

	foreign, err = NewTokenCodec(testKey, "todoapp", "other-client")
	require.NoError(t, err)
	token, err = foreign.Encode("u1", nil, TokenAccess, time.Minute)
	require.NoError(t, err)
	_, err = c.Decode(token)
	assert.ErrorIs(t, err, ErrTokenIssuerAudience)
}

func TestDecodeMalformed(t *testing.T) {
	c := newTestCodec(t, time.Now())

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := c.Decode(raw)
		assert.ErrorIs(t, err, ErrTokenMalformed, raw)
	}

	// signed with the right key but missing the token type
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"jti": "id",
		"iss": "todoapp",
		"aud": "todoapp-client",
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testKey)
	require.NoError(t, err)
	_, err = c.Decode(token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestDecodeRejectsNoneAlgorithm(t *testing.T) {
	c := newTestCodec(t, time.Now())
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  "u1",
		"jti":  "id",
		"iss":  "todoapp",
		"aud":  "todoapp-client",
		"type": "access",
		"exp":  jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Decode(token)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}
