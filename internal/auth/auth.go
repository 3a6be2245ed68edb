package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the only account the API knows
const AdminUser = "admin"

// RoleAdmin is granted to AdminUser and required for the history routes
const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims are carried by every issued token
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and checks API tokens
type AuthService struct {
	jwtSecret []byte
	adminHash []byte
	expiry    time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAuthService creates a new authentication service. adminPassword may
// be plain text or an existing bcrypt hash.
func NewAuthService(jwtSecret, adminPassword string, expiry time.Duration, logger *zerolog.Logger) (*AuthService, error) {
	if jwtSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if adminPassword == "" {
		return nil, errors.New("admin password is required")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	hash := []byte(adminPassword)
	if _, err := bcrypt.Cost(hash); err != nil {
		hash, err = bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("error hashing admin password: %w", err)
		}
	}

	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if logger != nil {
		l = *logger
	}

	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		adminHash: hash,
		expiry:    expiry,
		logger:    l.With().Str("component", "auth").Logger(),
		now:       time.Now,
	}, nil
}

// HashPassword returns a bcrypt hash suitable for auth.admin_password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate checks credentials and returns a signed token with its
// expiry
func (s *AuthService) Authenticate(username, password string) (string, time.Time, error) {
	if username != AdminUser {
		s.logger.Warn().Str("username", username).Msg("Login with unknown user")
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("Login with wrong password")
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, expires, err := s.generateToken(username, RoleAdmin)
	if err != nil {
		return "", time.Time{}, err
	}

	s.logger.Info().Str("username", username).Msg("User authenticated successfully")
	return token, expires, nil
}

// ValidateToken validates a JWT token and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshToken issues a new token for a still valid one
func (s *AuthService) RefreshToken(tokenString string) (string, time.Time, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.generateToken(claims.Username, claims.Role)
}

// generateToken generates a JWT token for a user
func (s *AuthService) generateToken(username, role string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.expiry)
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// bearerToken extracts the token from an Authorization header value
func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
