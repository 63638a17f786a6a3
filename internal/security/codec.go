package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

const (
	// MinSigningKeyBytes is the smallest accepted HS256 key.
	MinSigningKeyBytes = 32
	tokenIDBytes       = 16

	claimType = "type"
)

var reservedClaims = map[string]struct{}{
	"sub": {}, "jti": {}, "iat": {}, "exp": {}, "nbf": {}, "iss": {}, "aud": {}, claimType: {},
}

// ErrSigningKeyTooShort is returned by NewTokenCodec for keys below MinSigningKeyBytes.
var ErrSigningKeyTooShort = fmt.Errorf("signing key must be at least %d bytes", MinSigningKeyBytes)

// Claims is the decoded content of a session token.
type Claims struct {
	Subject   string
	ID        string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]interface{}
}

// TokenCodec signs and verifies HS256 session tokens bound to a fixed issuer and audience.
type TokenCodec struct {
	key      []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

// NewTokenCodec builds a codec. The key is copied.
func NewTokenCodec(key []byte, issuer, audience string) (*TokenCodec, error) {
	if len(key) < MinSigningKeyBytes {
		return nil, ErrSigningKeyTooShort
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("issuer and audience are required")
	}

	c := &TokenCodec{
		key:      append([]byte(nil), key...),
		issuer:   issuer,
		audience: audience,
		now:      time.Now,
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

// Encode signs a new token for subject. Caller claims are merged but never override
// the registered claims or the token type.
func (c *TokenCodec) Encode(subject string, claims map[string]interface{}, kind TokenKind, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be positive")
	}

	id, err := newTokenID()
	if err != nil {
		return "", err
	}

	now := c.now()
	mc := jwt.MapClaims{}
	for k, v := range claims {
		if _, reserved := reservedClaims[k]; !reserved {
			mc[k] = v
		}
	}
	mc["sub"] = subject
	mc["jti"] = id
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(now.Add(ttl))
	mc["iss"] = c.issuer
	mc["aud"] = c.audience
	mc[claimType] = string(kind)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature, then issuer and audience, then expiry.
// It never mutates state.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	_, err := c.parser.ParseWithClaims(token, mc, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims := &Claims{Extra: map[string]interface{}{}}
	if claims.Subject, err = mc.GetSubject(); err != nil || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	id, ok := mc["jti"].(string)
	if !ok || id == "" {
		return nil, ErrTokenMalformed
	}
	claims.ID = id

	kind, _ := mc[claimType].(string)
	switch TokenKind(kind) {
	case TokenAccess, TokenRefresh:
		claims.Kind = TokenKind(kind)
	default:
		return nil, ErrTokenMalformed
	}

	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	for k, v := range mc {
		if _, reserved := reservedClaims[k]; !reserved {
			claims.Extra[k] = v
		}
	}
	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrTokenIssuerAudience
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenMalformed
	}
}

func newTokenID() (string, error) {
	buf := make([]byte, tokenIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
