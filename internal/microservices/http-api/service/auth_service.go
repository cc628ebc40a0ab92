package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"yamdb/internal/config"
	"yamdb/internal/mail"
	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
	"yamdb/internal/microservices/http-api/dto"
	"yamdb/internal/microservices/http-api/models"
	"yamdb/internal/microservices/http-api/repository"
	"yamdb/internal/middleware/auth"
)

const (
	tokenTypeAccess = "access"
	// ReservedUsername addresses the caller's own profile and can never be a handle.
	ReservedUsername = "me"
	maxUsernameLen   = 150
)

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.@-]+$`)

// errBadCredentials is the single answer to every failed exchange, whatever went wrong.
var errBadCredentials = fmt.Errorf("%w: invalid username, email or confirmation code", apperr.ErrUnauthenticated)

// Claims are carried by access tokens.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// Signup creates a pending account (or finds the identical one) and mails a fresh code.
	Signup(ctx context.Context, req dto.SignupRequest) (*dto.SignupResponse, error)
	// Token exchanges a confirmation code for an access/refresh pair, consuming the code.
	Token(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error)
	// Refresh rotates a refresh token. Each refresh token works once.
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// ResolveActor validates an access token against the current account state.
	ResolveActor(ctx context.Context, tokenString string) (access.Actor, error)
}

type authService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	mailer           mail.Mailer
	logger           *slog.Logger
	jwtSecret        []byte
	accessTokenTTL   time.Duration
	refreshTokenTTL  time.Duration
	codeTTL          time.Duration
	now              func() time.Time
}

func NewAuthService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	mailer mail.Mailer,
	cfg *config.Config,
	logger *slog.Logger,
) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		mailer:           mailer,
		logger:           logger,
		jwtSecret:        []byte(cfg.JWTSecret),
		accessTokenTTL:   cfg.AccessTokenTTL,
		refreshTokenTTL:  cfg.RefreshTokenTTL,
		codeTTL:          cfg.ConfirmationCodeTTL,
		now:              time.Now,
	}
}

// ValidateUsername checks handle format: word characters plus . @ - , at most
// 150 characters, and never the reserved "me" in any case.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return apperr.Validation("username", "must not be blank")
	case utf8.RuneCountInString(username) > maxUsernameLen:
		return apperr.Validation("username", "must be at most 150 characters")
	case strings.EqualFold(username, ReservedUsername):
		return apperr.Validation("username", `"me" is reserved`)
	case !usernamePattern.MatchString(username):
		return apperr.Validation("username", "may contain only letters, digits and . @ - _")
	}
	return nil
}

func (s *authService) Signup(ctx context.Context, req dto.SignupRequest) (*dto.SignupResponse, error) {
	if err := dto.Check(req).Merge(ValidateUsername(req.Username)).OrNil(); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.findOrCreatePending(ctx, req.Username, email)
	if err != nil {
		return nil, err
	}

	code, err := s.issueCode(ctx, user)
	if err != nil {
		return nil, err
	}

	resp := &dto.SignupResponse{Username: user.Username, Email: user.Email}
	msg := mail.Message{
		To:      user.Email,
		Subject: "Your confirmation code",
		Body:    fmt.Sprintf("Hello %s,\n\nyour confirmation code is %s\nIt expires in %s.\n", user.Username, code, s.codeTTL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		// the account and code exist; signing up again re-sends
		s.logger.WarnContext(ctx, "confirmation mail not sent", "username", user.Username, "error", err)
		resp.Warning = "confirmation code could not be sent; sign up again to retry"
	}
	return resp, nil
}

// findOrCreatePending returns the account for the exact (handle, email) pair,
// creating it when neither is taken.
func (s *authService) findOrCreatePending(ctx context.Context, username, email string) (*models.User, error) {
	existing, err := s.matchExisting(ctx, username, email)
	if err != nil || existing != nil {
		return existing, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Role:     access.RoleUser,
		IsActive: false,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Dependency("create user", err)
		}
		// a concurrent sign-up won; identical pairs are still idempotent
		existing, err := s.matchExisting(ctx, username, email)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, apperr.Conflict("username or email already registered")
		}
		return existing, nil
	}
	return user, nil
}

// matchExisting returns the account when the pair matches one exactly, nil
// when neither part is taken, and a conflict when only one part is.
func (s *authService) matchExisting(ctx context.Context, username, email string) (*models.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if user.Email == email {
			return user, nil
		}
		return nil, apperr.Conflict("username already taken")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Dependency("find user", err)
	}

	if _, err := s.userRepo.FindByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Dependency("find user", err)
	}
	return nil, nil
}

// accountFingerprint binds a code to the account state it was issued for.
func accountFingerprint(u *models.User) string {
	return auth.Fingerprint(u.ID, u.Username, u.Email, strconv.FormatBool(u.IsActive))
}

func (s *authService) issueCode(ctx context.Context, user *models.User) (string, error) {
	code, err := auth.GenerateCode()
	if err != nil {
		return "", apperr.Dependency("generate code", err)
	}
	hashed, err := auth.HashCode(code, accountFingerprint(user))
	if err != nil {
		return "", apperr.Dependency("hash code", err)
	}
	if err := s.userRepo.SetConfirmation(ctx, user.ID, hashed, s.now().Add(s.codeTTL)); err != nil {
		return "", apperr.Dependency("store code", err)
	}
	return code, nil
}

func (s *authService) Token(ctx context.Context, req dto.TokenRequest) (*dto.TokenResponse, error) {
	ve := dto.Check(req)
	if req.Username == "" && req.Email == "" {
		ve.Add("username", "username or email is required")
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	user, err := s.lookupForExchange(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.ConfirmationCodeHash == nil ||
		user.ConfirmationExpiresAt == nil || !s.now().Before(*user.ConfirmationExpiresAt) {
		// keep the failure path as slow as a real comparison
		auth.BurnCompare(req.ConfirmationCode)
		return nil, errBadCredentials
	}

	hashed := *user.ConfirmationCodeHash
	if err := auth.VerifyCode(hashed, req.ConfirmationCode, accountFingerprint(user)); err != nil {
		return nil, errBadCredentials
	}

	consumed, err := s.userRepo.ConsumeConfirmation(ctx, user.ID, hashed)
	if err != nil {
		return nil, apperr.Dependency("consume code", err)
	}
	if !consumed {
		// another request used this code first
		return nil, errBadCredentials
	}

	return s.issueTokens(ctx, user)
}

// lookupForExchange returns nil without error when no single account matches.
func (s *authService) lookupForExchange(ctx context.Context, username, email string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if username != "" {
		user, err = s.userRepo.FindByUsername(ctx, username)
	} else {
		user, err = s.userRepo.FindByEmail(ctx, email)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Dependency("find user", err)
	}
	if username != "" && email != "" && !strings.EqualFold(user.Email, email) {
		return nil, nil
	}
	return user, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	if refreshToken == "" {
		return nil, apperr.Validation("refresh_token", "this field is required")
	}
	stored, err := s.refreshTokenRepo.FindByHash(ctx, hashToken(refreshToken))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: invalid refresh token", apperr.ErrUnauthenticated)
	}
	if err != nil {
		return nil, apperr.Dependency("find refresh token", err)
	}
	if stored.Revoked || !s.now().Before(stored.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired or revoked", apperr.ErrUnauthenticated)
	}

	rotated, err := s.refreshTokenRepo.Revoke(ctx, stored.ID)
	if err != nil {
		return nil, apperr.Dependency("revoke refresh token", err)
	}
	if !rotated {
		return nil, fmt.Errorf("%w: refresh token already used", apperr.ErrUnauthenticated)
	}

	user, err := s.userRepo.FindByID(ctx, stored.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
		return nil, fmt.Errorf("%w: account unavailable", apperr.ErrUnauthenticated)
	}
	if err != nil {
		return nil, apperr.Dependency("find user", err)
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) issueTokens(ctx context.Context, user *models.User) (*dto.TokenResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, apperr.Dependency("sign access token", err)
	}
	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, apperr.Dependency("store refresh token", err)
	}
	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}

func (s *authService) generateAccessToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Type:     tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	raw := uuid.NewString() + uuid.NewString()
	refreshToken := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(s.refreshTokenTTL),
	}
	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}
	return raw, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *authService) ResolveActor(ctx context.Context, tokenString string) (access.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || claims.Type != tokenTypeAccess || claims.UserID == "" {
		return access.Anonymous, fmt.Errorf("%w: invalid or expired token", apperr.ErrUnauthenticated)
	}

	// reload so role changes and deactivation apply to tokens already issued
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
		return access.Anonymous, fmt.Errorf("%w: account unavailable", apperr.ErrUnauthenticated)
	}
	if err != nil {
		return access.Anonymous, apperr.Dependency("find user", err)
	}
	return user.Actor(), nil
}
