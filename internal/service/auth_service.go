package service

import (
	"context"
	"time"

	"github.com/aura-bot/internal/config"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/store"
	"github.com/aura-bot/pkg/keygen"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// TokenResponse represents the JWT token response
type TokenResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	ExpiresIn   int                 `json:"expires_in"`
	UserID      string              `json:"user_id"`
	Provider    models.AuthProvider `json:"provider"`
}

// JWTClaims represents the JWT claims
type JWTClaims struct {
	UserID string `json:"user_id"`
	AppID  string `json:"app_id"`
	jwt.RegisteredClaims
}

// CustomTokenRequest carries an externally minted sign-in token
type CustomTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// AuthService establishes dashboard identities. There are no credentials:
// a visitor signs in anonymously or with a custom token minted elsewhere.
type AuthService struct {
	store     *store.Store
	appID     string
	jwtConfig config.JWTConfig
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(st *store.Store, appID string, jwtConfig config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		store:     st,
		appID:     appID,
		jwtConfig: jwtConfig,
		logger:    logger,
	}
}

// SignInAnonymously creates a fresh identity
func (s *AuthService) SignInAnonymously(ctx context.Context) (*TokenResponse, error) {
	user := &models.User{
		ID:       keygen.UserID(),
		AppID:    s.appID,
		Provider: models.AuthProviderAnonymous,
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("anonymous sign-in", zap.String("user_id", user.ID))
	return s.generateToken(user)
}

// SignInWithCustomToken signs in as the subject of a custom token. A token
// that fails verification falls back to an anonymous identity, so the
// dashboard always ends up signed in.
func (s *AuthService) SignInWithCustomToken(ctx context.Context, token string) (*TokenResponse, error) {
	subject, err := s.verifyCustomToken(token)
	if err != nil {
		s.logger.Warn("custom token rejected, falling back to anonymous sign-in", zap.Error(err))
		return s.SignInAnonymously(ctx)
	}

	user := &models.User{
		ID:       subject,
		AppID:    s.appID,
		Provider: models.AuthProviderCustomToken,
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("custom token sign-in", zap.String("user_id", user.ID))
	return s.generateToken(user)
}

func (s *AuthService) verifyCustomToken(tokenString string) (string, error) {
	if s.jwtConfig.CustomTokenSecret == "" {
		return "", errors.New("custom tokens are not configured")
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.CustomTokenSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// RefreshToken issues a new token for the identity of a valid one
func (s *AuthService) RefreshToken(ctx context.Context, tokenString string) (*TokenResponse, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.store.GetUser(ctx, claims.AppID, claims.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		return nil, err
	}
	return s.generateToken(user)
}

// ValidateToken validates a JWT token and returns the claims
func (s *AuthService) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// generateToken generates a JWT token for a user
func (s *AuthService) generateToken(user *models.User) (*TokenResponse, error) {
	expiresAt := time.Now().Add(time.Duration(s.jwtConfig.ExpireHours) * time.Hour)

	claims := &JWTClaims{
		UserID: user.ID,
		AppID:  user.AppID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "aura-bot",
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   s.jwtConfig.ExpireHours * 3600,
		UserID:      user.ID,
		Provider:    user.Provider,
	}, nil
}
