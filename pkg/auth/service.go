package auth

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sarathmodify/admin-dashboard/pkg/backend"
	apperrors "github.com/sarathmodify/admin-dashboard/pkg/errors"
	"github.com/sarathmodify/admin-dashboard/pkg/tokengenerator"
	"golang.org/x/crypto/bcrypt"
)

var _ backend.Auth = (*Service)(nil)

const (
	defaultAccessTokenExpiry  = time.Hour
	defaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// PasswordComplexity describes the password rules enforced on sign up and password change
type PasswordComplexity struct {
	RequiredDigit           bool
	RequiredLowercase       bool
	RequiredNonAlphanumeric bool
	RequiredUppercase       bool
	RequiredLength          int
}

var (
	hasDigit           = regexp.MustCompile(`[0-9]+`)
	hasLowercase       = regexp.MustCompile(`[a-z]+`)
	hasUppercase       = regexp.MustCompile(`[A-Z]+`)
	hasNonAlphanumeric = regexp.MustCompile(`[\W_]+`)
)

// Verify returns a KindValidation error naming the first unmet rule
func (pc PasswordComplexity) Verify(password string) error {
	if len(password) < pc.RequiredLength {
		return apperrors.Validation("password", "must be at least "+strconv.Itoa(pc.RequiredLength)+" characters")
	}
	if pc.RequiredDigit && !hasDigit.MatchString(password) {
		return apperrors.Validation("password", "must have at least one digit ('0'-'9')")
	}
	if pc.RequiredLowercase && !hasLowercase.MatchString(password) {
		return apperrors.Validation("password", "must have at least one lowercase ('a'-'z')")
	}
	if pc.RequiredUppercase && !hasUppercase.MatchString(password) {
		return apperrors.Validation("password", "must have at least one uppercase ('A'-'Z')")
	}
	if pc.RequiredNonAlphanumeric && !hasNonAlphanumeric.MatchString(password) {
		return apperrors.Validation("password", "must have at least one non-alphanumeric character")
	}
	return nil
}

// Service implements backend.Auth over a credential store and a token generator
type Service struct {
	creds         backend.CredentialStore
	tokens        *tokengenerator.JwtTokenGenerator
	pwdComplex    PasswordComplexity
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	hub           *hub

	// revoked holds signed-out session IDs; refreshIDs the one live refresh token ID per session.
	// Both are unbounded and expire entries only once no token can carry them.
	mu         sync.Mutex
	revoked    *lru.LRU[string, struct{}]
	refreshIDs *lru.LRU[string, string]
}

// Option configures the Service
type Option func(*Service)

// WithPwdComplex sets the password rules
func WithPwdComplex(pc PasswordComplexity) Option {
	return func(s *Service) {
		s.pwdComplex = pc
	}
}

// WithAccessTokenExpiry sets the access token lifetime
func WithAccessTokenExpiry(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.accessExpiry = d
		}
	}
}

// WithRefreshTokenExpiry sets the refresh token lifetime
func WithRefreshTokenExpiry(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshExpiry = d
		}
	}
}

// NewService creates a new auth service
func NewService(creds backend.CredentialStore, tokens *tokengenerator.JwtTokenGenerator, opts ...Option) *Service {
	s := &Service{
		creds:         creds,
		tokens:        tokens,
		pwdComplex:    PasswordComplexity{RequiredLength: 8},
		accessExpiry:  defaultAccessTokenExpiry,
		refreshExpiry: defaultRefreshTokenExpiry,
		hub:           newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.revoked = lru.NewLRU[string, struct{}](0, nil, s.refreshExpiry)
	s.refreshIDs = lru.NewLRU[string, string](0, nil, s.refreshExpiry)
	return s
}

// SignUp registers a credential. Used by the seed command and tests.
func (s *Service) SignUp(ctx context.Context, email, password string) (backend.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return backend.User{}, apperrors.Validation("email", "must be a valid email address")
	}
	if err := s.pwdComplex.Verify(password); err != nil {
		return backend.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to generate password hash", "err", err)
		return backend.User{}, apperrors.MutationFailed(err, "hash password")
	}

	user := backend.User{ID: uuid.New(), Email: email}
	if err := s.creds.CreateCredential(ctx, backend.Credential{UserID: user.ID, Email: email, PasswordHash: hash}); err != nil {
		return backend.User{}, err
	}
	slog.Info("User registered", "user_id", user.ID)
	return user, nil
}

// SignInWithPassword verifies the password and opens a new session
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	cred, err := s.creds.GetCredentialByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			slog.Warn("Sign in with unknown email")
			return nil, apperrors.Unauthenticated("invalid email or password")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		slog.Warn("Sign in with wrong password", "user_id", cred.UserID)
		return nil, apperrors.Unauthenticated("invalid email or password")
	}

	session, err := s.issue(backend.User{ID: cred.UserID, Email: cred.Email}, uuid.New().String())
	if err != nil {
		return nil, err
	}
	slog.Info("User signed in", "user_id", cred.UserID)
	s.hub.emit(backend.EventSignedIn, session)
	return session, nil
}

// SignOut revokes every token of the session carried by accessToken
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.ParseToken(accessToken, tokengenerator.AccessToken)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindUnauthenticated, "invalid access token")
	}
	s.mu.Lock()
	s.revoked.Add(claims.SessionID, struct{}{})
	s.refreshIDs.Remove(claims.SessionID)
	s.mu.Unlock()
	user, _ := userFromClaims(claims)
	slog.Info("User signed out", "user_id", claims.Subject)
	s.hub.emit(backend.EventSignedOut, &backend.Session{ID: claims.SessionID, User: user})
	return nil
}

// GetSession returns the live session for accessToken
func (s *Service) GetSession(ctx context.Context, accessToken string) (*backend.Session, error) {
	claims, err := s.verify(accessToken, tokengenerator.AccessToken)
	if err != nil {
		return nil, err
	}
	user, err := userFromClaims(claims)
	if err != nil {
		return nil, err
	}
	return &backend.Session{
		ID:          claims.SessionID,
		AccessToken: accessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}, nil
}

// Refresh rotates the token pair of the session carried by refreshToken
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	claims, err := s.verify(refreshToken, tokengenerator.RefreshToken)
	if err != nil {
		return nil, err
	}
	user, err := userFromClaims(claims)
	if err != nil {
		return nil, err
	}
	if _, err := s.creds.GetCredential(ctx, user.ID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnauthenticated, "user no longer exists")
	}

	// rotate: the old refresh token is single use, the session ID survives
	s.mu.Lock()
	if current, ok := s.refreshIDs.Get(claims.SessionID); ok && current != claims.ID {
		s.mu.Unlock()
		slog.Warn("Reused refresh token", "user_id", user.ID)
		return nil, apperrors.Unauthenticated("refresh token already used")
	}
	if s.revoked.Contains(claims.SessionID) {
		s.mu.Unlock()
		return nil, apperrors.Unauthenticated("session revoked")
	}
	session, err := s.issue(user, claims.SessionID)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	slog.Debug("Session refreshed", "user_id", user.ID)
	s.hub.emit(backend.EventTokenRefreshed, session)
	return session, nil
}

// GetUser returns the user of accessToken
func (s *Service) GetUser(ctx context.Context, accessToken string) (*backend.User, error) {
	session, err := s.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &session.User, nil
}

// UpdateUser applies attrs to the user of accessToken
func (s *Service) UpdateUser(ctx context.Context, accessToken string, attrs backend.UserAttributes) error {
	session, err := s.GetSession(ctx, accessToken)
	if err != nil {
		return err
	}

	if attrs.Password != "" {
		if err := s.pwdComplex.Verify(attrs.Password); err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(attrs.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("Failed to generate password hash", "err", err)
			return apperrors.MutationFailed(err, "hash password")
		}
		if err := s.creds.UpdatePasswordHash(ctx, session.User.ID, hash); err != nil {
			slog.Error("Failed to update password", "user_id", session.User.ID, "err", err)
			return err
		}
		slog.Info("Password updated", "user_id", session.User.ID)
	}

	s.hub.emit(backend.EventUserUpdated, session)
	return nil
}

// OnAuthStateChange registers fn and returns its unsubscribe function
func (s *Service) OnAuthStateChange(fn backend.AuthListener) func() {
	return s.hub.subscribe(fn)
}

func (s *Service) verify(token string, typ tokengenerator.TokenType) (*tokengenerator.Claims, error) {
	claims, err := s.tokens.ParseToken(token, typ)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnauthenticated, "invalid "+string(typ)+" token")
	}
	if s.revoked.Contains(claims.SessionID) {
		return nil, apperrors.Unauthenticated("session revoked")
	}
	return claims, nil
}

// issue signs a token pair and records the refresh token as the session's only live one
func (s *Service) issue(user backend.User, sessionID string) (*backend.Session, error) {
	access, err := s.tokens.Issue(tokengenerator.AccessToken, user.ID.String(), user.Email, sessionID, s.accessExpiry)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnknown, "sign access token")
	}
	refresh, err := s.tokens.Issue(tokengenerator.RefreshToken, user.ID.String(), user.Email, sessionID, s.refreshExpiry)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindUnknown, "sign refresh token")
	}
	s.refreshIDs.Add(sessionID, refresh.ID)
	return &backend.Session{
		ID:           sessionID,
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		ExpiresAt:    access.ExpiresAt,
		User:         user,
	}, nil
}

func userFromClaims(claims *tokengenerator.Claims) (backend.User, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return backend.User{}, apperrors.Wrap(err, apperrors.KindUnauthenticated, "malformed token subject")
	}
	return backend.User{ID: id, Email: claims.Email}, nil
}
