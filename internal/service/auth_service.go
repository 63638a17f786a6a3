package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/todo-api/internal/models"
	"github.com/noah-isme/todo-api/internal/repository"
	"github.com/noah-isme/todo-api/internal/security"
	appErrors "github.com/noah-isme/todo-api/pkg/errors"
)

const passwordRequirements = "Password must be 8-50 characters with uppercase, lowercase, digit, and special character"

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
}

// SecurityEventRecorder receives authentication and request-defense events.
type SecurityEventRecorder interface {
	Record(ctx context.Context, event models.SecurityEvent)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, models.SecurityEvent) {}

// AuthService provides registration, login and session use cases.
type AuthService struct {
	repo      authUserRepository
	tokens    *security.TokenManager
	hasher    PasswordHasher
	events    SecurityEventRecorder
	inputs    *security.InputValidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, tokens *security.TokenManager, hasher PasswordHasher, events SecurityEventRecorder, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if events == nil {
		events = nopRecorder{}
	}
	return &AuthService{
		repo:      repo,
		tokens:    tokens,
		hasher:    hasher,
		events:    events,
		inputs:    security.NewInputValidator(),
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Register validates every field, creates the account and signs the user in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username, name, email, password and confirmPassword are required")
	}

	checks := []struct {
		value  string
		kind   security.FieldKind
		prefix string
	}{
		{req.Username, security.FieldUsername, "Invalid username: "},
		{req.Email, security.FieldEmail, "Invalid email: "},
		{req.Password, security.FieldPassword, ""},
	}
	for _, check := range checks {
		if res := s.inputs.ValidateSecurely(check.value, check.kind); !res.Valid {
			message := check.prefix + res.Reason
			if check.kind == security.FieldPassword {
				message = passwordRequirements
			}
			s.record(ctx, security.EventRegisterFailed, req.Username, security.OutcomeFailure, req.IP, req.UserAgent, string(check.kind)+": "+res.Reason)
			return nil, appErrors.Clone(appErrors.ErrValidation, message)
		}
	}

	if req.Password != req.ConfirmPassword {
		s.record(ctx, security.EventRegisterPasswordMismatch, req.Username, security.OutcomeFailure, req.IP, req.UserAgent, "")
		return nil, appErrors.Clone(appErrors.ErrValidation, "Passwords do not match")
	}

	if res := s.inputs.ValidateSecurely(req.Name, security.FieldName); !res.Valid {
		s.record(ctx, security.EventRegisterFailed, req.Username, security.OutcomeFailure, req.IP, req.UserAgent, "name: "+res.Reason)
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid name: "+res.Reason)
	}

	username := s.inputs.Sanitize(req.Username)
	email := strings.ToLower(s.inputs.Sanitize(req.Email))
	name := s.inputs.Sanitize(req.Name)

	s.record(ctx, security.EventRegisterAttempt, username, security.OutcomeSuccess, req.IP, req.UserAgent, "")

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		s.record(ctx, security.EventRegisterFailed, username, security.OutcomeFailure, req.IP, req.UserAgent, err.Error())
		return nil, err
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.record(ctx, security.EventRegisterError, username, security.OutcomeFailure, req.IP, req.UserAgent, "hash")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Registration failed. Please try again.")
	}

	user := &models.User{Username: username, Email: email, Name: name, PasswordHash: digest, Active: true}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.record(ctx, security.EventRegisterFailed, username, security.OutcomeFailure, req.IP, req.UserAgent, "duplicate")
			return nil, appErrors.Clone(appErrors.ErrConflict, "Username or email already exists")
		}
		s.record(ctx, security.EventRegisterError, username, security.OutcomeFailure, req.IP, req.UserAgent, "persist")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Registration failed. Please try again.")
	}

	resp, err := s.issue(user)
	if err != nil {
		s.record(ctx, security.EventRegisterError, username, security.OutcomeFailure, req.IP, req.UserAgent, "issue tokens")
		return nil, err
	}
	s.record(ctx, security.EventRegisterSuccess, username, security.OutcomeSuccess, req.IP, req.UserAgent, "")
	return resp, nil
}

// Login checks the username format and the password hash. It deliberately skips
// password-strength classification so failures do not reveal the rules.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if res := s.inputs.ValidateSecurely(req.Username, security.FieldUsername); !res.Valid {
		s.record(ctx, security.EventLoginInvalidUsername, req.Username, security.OutcomeFailure, req.IP, req.UserAgent, res.Reason)
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid username format")
	}
	if strings.TrimSpace(req.Password) == "" {
		s.record(ctx, security.EventLoginEmptyPassword, req.Username, security.OutcomeFailure, req.IP, req.UserAgent, "")
		return nil, appErrors.Clone(appErrors.ErrValidation, "Password is required")
	}
	if s.inputs.ContainsInjectionMarkers(req.Username) || s.inputs.ContainsInjectionMarkers(req.Password) {
		s.record(ctx, security.EventLoginXSSAttempt, req.Username, security.OutcomeBlocked, req.IP, req.UserAgent, "")
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid characters detected")
	}

	username := s.inputs.Sanitize(req.Username)
	s.record(ctx, security.EventLoginAttempt, username, security.OutcomeSuccess, req.IP, req.UserAgent, "")

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.record(ctx, security.EventLoginFailed, username, security.OutcomeFailure, req.IP, req.UserAgent, "unknown user")
			return nil, appErrors.ErrInvalidCredentials
		}
		s.record(ctx, security.EventLoginError, username, security.OutcomeFailure, req.IP, req.UserAgent, "lookup")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Login failed. Please try again.")
	}
	if !user.Active || !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.record(ctx, security.EventLoginFailed, username, security.OutcomeFailure, req.IP, req.UserAgent, "bad credentials")
		return nil, appErrors.ErrInvalidCredentials
	}

	resp, err := s.issue(user)
	if err != nil {
		s.record(ctx, security.EventLoginError, username, security.OutcomeFailure, req.IP, req.UserAgent, "issue tokens")
		return nil, err
	}
	s.record(ctx, security.EventLoginSuccess, username, security.OutcomeSuccess, req.IP, req.UserAgent, "")
	return resp, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "refreshToken is required")
	}

	user, err := s.resolveRefresh(ctx, req.RefreshToken)
	if err != nil {
		s.record(ctx, security.EventTokenRejected, "", security.OutcomeFailure, req.IP, req.UserAgent, "refresh: "+security.TokenFailureReason(err))
		if errors.Is(err, errLookup) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh session")
		}
		return nil, appErrors.ErrUnauthorized
	}

	s.tokens.Revoke(req.RefreshToken)
	s.record(ctx, security.EventTokenRevoked, user.Username, security.OutcomeSuccess, req.IP, req.UserAgent, "refresh rotation")
	resp, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	s.record(ctx, security.EventTokenRefreshed, user.Username, security.OutcomeSuccess, req.IP, req.UserAgent, "")
	return resp, nil
}

// Logout revokes the presented access token and, when supplied, the refresh token.
func (s *AuthService) Logout(ctx context.Context, req models.LogoutRequest) error {
	if req.AccessToken == "" {
		return appErrors.ErrUnauthorized
	}
	s.tokens.Revoke(req.AccessToken)
	if req.RefreshToken != "" {
		s.tokens.Revoke(req.RefreshToken)
	}
	s.record(ctx, security.EventLogout, req.Username, security.OutcomeSuccess, req.IP, req.UserAgent, "")
	return nil
}

// Me returns the profile of an authenticated user.
func (s *AuthService) Me(ctx context.Context, username string) (*models.UserInfo, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	info := user.Info()
	return &info, nil
}

var errLookup = errors.New("user lookup failed")

func (s *AuthService) resolveRefresh(ctx context.Context, token string) (*models.User, error) {
	subject, err := s.tokens.Subject(token)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByUsername(ctx, subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, security.ErrTokenSubjectMismatch
		}
		s.logger.Error("refresh user lookup failed", zap.Error(err))
		return nil, errLookup
	}
	if !user.Active {
		return nil, security.ErrTokenSubjectMismatch
	}
	if _, err := s.tokens.ValidateRefresh(token, user.Username); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, username, email string) error {
	taken, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Registration failed. Please try again.")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, "Username already exists")
	}
	taken, err = s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Registration failed. Please try again.")
	}
	if taken {
		return appErrors.Clone(appErrors.ErrConflict, "Email already exists")
	}
	return nil
}

func (s *AuthService) issue(user *models.User) (*models.AuthResponse, error) {
	pair, err := s.tokens.IssuePair(user.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session tokens")
	}
	return &models.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		IssuedAt:     s.now().UTC(),
		User:         user.Info(),
	}, nil
}

func (s *AuthService) record(ctx context.Context, event, actor, outcome, ip, userAgent, detail string) {
	s.events.Record(ctx, models.SecurityEvent{
		Event:     event,
		Actor:     actor,
		Outcome:   outcome,
		Detail:    detail,
		IPAddress: ip,
		UserAgent: userAgent,
	})
}
