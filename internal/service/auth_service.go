package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/coursecap-api/internal/integration/cas"
	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type profileLoader interface {
	Profile(ctx context.Context, uid string) (*models.UserProfile, error)
}

type casClient interface {
	LoginURL(targetURL string) string
	LogoutURL(redirectURL string) string
	ValidateTicket(ctx context.Context, ticket, targetURL string) (*cas.Principal, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret   string
	AccessTokenExpiry   time.Duration
	Issuer              string
	DevAuthEnabled      bool
	DevAuthPasswordHash string
	LogoutRedirectURL   string
	SupportEmail        string
}

// AuthService provides authentication use cases.
type AuthService struct {
	profiles  profileLoader
	cas       casClient
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(profiles profileLoader, casClient casClient, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.AccessTokenExpiry <= 0 {
		config.AccessTokenExpiry = 12 * time.Hour
	}
	return &AuthService{profiles: profiles, cas: casClient, validator: validate, logger: logger, config: config}
}

// CASLoginURL returns where the browser signs in.
func (s *AuthService) CASLoginURL(targetURL string) string {
	return s.cas.LoginURL(targetURL)
}

// CASLogin validates a CAS service ticket and signs the user in.
func (s *AuthService) CASLogin(ctx context.Context, ticket, targetURL string) (*models.LoginResponse, error) {
	principal, err := s.cas.ValidateTicket(ctx, ticket, targetURL)
	if err != nil {
		s.logger.Warn("cas ticket rejected", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "CAS ticket validation failed")
	}
	s.logger.Info("logged into CAS", zap.String("uid", principal.UID))

	profile, err := s.profiles.Profile(ctx, principal.UID)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		s.logger.Warn("inactive user attempted login", zap.String("uid", principal.UID))
		msg := "Sorry, you are not registered to use Course Capture."
		if s.config.SupportEmail != "" {
			msg = fmt.Sprintf("%s Please email %s for assistance.", msg, s.config.SupportEmail)
		}
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, msg)
	}
	return s.login(profile)
}

// DevLogin signs in with a uid and the shared developer password.
func (s *AuthService) DevLogin(ctx context.Context, req models.DevLoginRequest) (*models.LoginResponse, error) {
	if !s.config.DevAuthEnabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Unknown path")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.DevAuthPasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Invalid credentials")
	}

	profile, err := s.profiles.Profile(ctx, req.UID)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		msg := fmt.Sprintf("UID %s is neither an admin nor active in the campus directory.", req.UID)
		s.logger.Warn("dev login refused", zap.String("uid", req.UID))
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, msg)
	}
	return s.login(profile)
}

// LogoutURL returns the CAS logout URL which returns the browser to the app.
func (s *AuthService) LogoutURL() string {
	return s.cas.LogoutURL(s.config.LogoutRedirectURL)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) login(profile *models.UserProfile) (*models.LoginResponse, error) {
	accessToken, issuedAt, err := s.generateAccessToken(profile)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	s.logger.Info("user signed in", zap.String("uid", profile.UID), zap.String("role", string(profile.Role())))
	return &models.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        *profile,
	}, nil
}

func (s *AuthService) generateAccessToken(profile *models.UserProfile) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UID:   profile.UID,
		Role:  profile.Role(),
		Email: profile.EmailAddress,
		Name:  profile.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   profile.UID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, issuedAt, nil
}
