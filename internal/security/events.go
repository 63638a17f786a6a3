package security

// Security event names recorded by the request pipeline and the auth flows.
const (
	EventRegisterAttempt          = "REGISTER_ATTEMPT"
	EventRegisterSuccess          = "REGISTER_SUCCESS"
	EventRegisterFailed           = "REGISTER_FAILED"
	EventRegisterPasswordMismatch = "REGISTER_PASSWORD_MISMATCH"
	EventRegisterError            = "REGISTER_ERROR"

	EventLoginAttempt         = "LOGIN_ATTEMPT"
	EventLoginSuccess         = "LOGIN_SUCCESS"
	EventLoginFailed          = "LOGIN_FAILED"
	EventLoginInvalidUsername = "LOGIN_INVALID_USERNAME"
	EventLoginEmptyPassword   = "LOGIN_EMPTY_PASSWORD"
	EventLoginXSSAttempt      = "LOGIN_XSS_ATTEMPT"
	EventLoginError           = "LOGIN_ERROR"

	EventTokenRefreshed = "TOKEN_REFRESHED"
	EventTokenRevoked   = "TOKEN_REVOKED"
	EventTokenRejected  = "TOKEN_REJECTED"
	EventLogout         = "LOGOUT"

	// EventRateLimited is recorded when admission control rejects a request.
	EventRateLimited = "RATE_LIMIT_EXCEEDED"
	// EventInputRejected is recorded when a business payload fails secure validation.
	EventInputRejected = "INPUT_REJECTED"
)

// Event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeBlocked = "blocked"
)
