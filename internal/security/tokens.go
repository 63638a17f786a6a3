package security

import (
	"time"
)

// TokenPair is returned to clients after login, registration and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// TokenManager issues, validates and revokes session tokens.
// A token moves from issued to valid and ends either expired or revoked; both are terminal.
type TokenManager struct {
	codec       *TokenCodec
	revocations *RevocationRegistry
	accessTTL   time.Duration
	refreshTTL  time.Duration
	now         func() time.Time
}

// NewTokenManager composes a codec and a revocation registry.
func NewTokenManager(codec *TokenCodec, revocations *RevocationRegistry, accessTTL, refreshTTL time.Duration) *TokenManager {
	if revocations == nil {
		revocations = NewRevocationRegistry()
	}
	return &TokenManager{
		codec:       codec,
		revocations: revocations,
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		now:         time.Now,
	}
}

func (m *TokenManager) IssueAccessToken(subject string) (string, error) {
	return m.codec.Encode(subject, nil, TokenAccess, m.accessTTL)
}

func (m *TokenManager) IssueRefreshToken(subject string) (string, error) {
	return m.codec.Encode(subject, nil, TokenRefresh, m.refreshTTL)
}

// IssuePair mints an access and a refresh token for subject.
func (m *TokenManager) IssuePair(subject string) (*TokenPair, error) {
	access, err := m.IssueAccessToken(subject)
	if err != nil {
		return nil, err
	}
	refresh, err := m.IssueRefreshToken(subject)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.accessTTL / time.Second),
	}, nil
}

// ValidateAccess accepts only unrevoked access tokens issued to expectedSubject.
func (m *TokenManager) ValidateAccess(token, expectedSubject string) (*Claims, error) {
	return m.Validate(token, expectedSubject, TokenAccess)
}

// ValidateRefresh accepts only unrevoked refresh tokens issued to expectedSubject.
func (m *TokenManager) ValidateRefresh(token, expectedSubject string) (*Claims, error) {
	return m.Validate(token, expectedSubject, TokenRefresh)
}

// Validate decodes token and then checks revocation, subject and kind in that order.
func (m *TokenManager) Validate(token, expectedSubject string, kind TokenKind) (*Claims, error) {
	claims, err := m.codec.Decode(token)
	if err != nil {
		return nil, err
	}
	if m.revocations.IsRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}
	if claims.Subject != expectedSubject {
		return nil, ErrTokenSubjectMismatch
	}
	if claims.Kind != kind {
		return nil, ErrTokenKindMismatch
	}
	return claims, nil
}

// Subject extracts the subject of a token that decodes cleanly. It does not consult revocation.
func (m *TokenManager) Subject(token string) (string, error) {
	claims, err := m.codec.Decode(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Revoke blocks token for the rest of its lifetime. Tokens that fail to decode are
// blocked by their raw text for one refresh TTL.
func (m *TokenManager) Revoke(token string) {
	claims, err := m.codec.Decode(token)
	if err != nil {
		m.revocations.Revoke(token, m.now().Add(m.refreshTTL))
		return
	}
	m.revocations.Revoke(claims.ID, claims.ExpiresAt)
}

// Revocations exposes the registry for sweeping and metrics.
func (m *TokenManager) Revocations() *RevocationRegistry {
	return m.revocations
}
