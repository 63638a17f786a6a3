package security

import "errors"

// Token failures. They are distinct for logging only; the HTTP boundary reports all of them as unauthenticated.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenIssuerAudience   = errors.New("token issuer or audience mismatch")
	ErrTokenRevoked          = errors.New("token revoked")
	ErrTokenSubjectMismatch  = errors.New("token subject mismatch")
	ErrTokenKindMismatch     = errors.New("token kind mismatch")
)

// TokenFailureReason returns a short label for a token error, suitable for logs and metrics.
func TokenFailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenIssuerAudience):
		return "issuer_audience_mismatch"
	case errors.Is(err, ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, ErrTokenSubjectMismatch):
		return "subject_mismatch"
	case errors.Is(err, ErrTokenKindMismatch):
		return "kind_mismatch"
	default:
		return "unknown"
	}
}
