package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinBcryptCost     = bcrypt.MinCost
	MaxBcryptCost     = bcrypt.MaxCost
	DefaultBcryptCost = bcrypt.DefaultCost

	MinPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72

	DefaultIssuer = "forum"

	audienceAccess = "access"
	audienceReset  = "password-reset"
)

var (
	ErrPasswordTooShort  = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong   = fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
	ErrEmptyToken        = errors.New("token cannot be empty")
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token has expired")
	ErrInvalidAuthHeader = errors.New("invalid authorization header")
)

type Config struct {
	SigningKey []byte
	BcryptCost int
	Issuer     string
	Clock      clockwork.Clock
}

// Service hashes passwords and issues the signed tokens used by the API
// and the password reset flow.
type Service struct {
	config Config
	clock  clockwork.Clock
}

func NewAuthService(cfg Config) (*Service, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("signing key cannot be empty")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.BcryptCost < MinBcryptCost || cfg.BcryptCost > MaxBcryptCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", MinBcryptCost, MaxBcryptCost)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Service{config: cfg, clock: cfg.Clock}, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := validatePassword(password); err != nil {
		return "", err
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}

	return string(hashBytes), nil
}

func (s *Service) CheckPasswordHash(password string, hash string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *Service) MakeJWT(userID uuid.UUID, expiresIn time.Duration) (string, error) {
	return s.sign(userID, audienceAccess, "", expiresIn)
}

func (s *Service) ValidateJWT(tokenString string) (uuid.UUID, error) {
	claims, err := s.parse(tokenString, audienceAccess)
	if err != nil {
		return uuid.Nil, err
	}
	return subject(claims)
}

// MakeResetToken issues a password reset token bound to the user's current
// password hash, so it stops working once the password changes.
func (s *Service) MakeResetToken(userID uuid.UUID, passwordHash string, expiresIn time.Duration) (string, error) {
	return s.sign(userID, audienceReset, PasswordFingerprint(passwordHash), expiresIn)
}

// ValidateResetToken returns the user the token was issued for and the
// password fingerprint it is bound to.
func (s *Service) ValidateResetToken(tokenString string) (uuid.UUID, string, error) {
	claims, err := s.parse(tokenString, audienceReset)
	if err != nil {
		return uuid.Nil, "", err
	}
	userID, err := subject(claims)
	if err != nil {
		return uuid.Nil, "", err
	}
	return userID, claims.ID, nil
}

func PasswordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

func (s *Service) sign(userID uuid.UUID, audience, id string, expiresIn time.Duration) (string, error) {
	now := s.clock.Now().UTC()
	tk := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    s.config.Issuer,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		Subject:   userID.String(),
		ID:        id,
	})
	ss, err := tk.SignedString(s.config.SigningKey)
	if err != nil {
		return "", fmt.Errorf("error signing jwt: %w", err)
	}

	return ss, nil
}

func (s *Service) parse(tokenString, audience string) (*jwt.RegisteredClaims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.config.SigningKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func subject(claims *jwt.RegisteredClaims) (uuid.UUID, error) {
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

func (s *Service) MakeRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) GetBearerToken(headers http.Header) (string, error) {
	return headerCredential(headers, "Bearer")
}

func (s *Service) GetAPIKey(headers http.Header) (string, error) {
	return headerCredential(headers, "ApiKey")
}

func headerCredential(headers http.Header, scheme string) (string, error) {
	parts := strings.Fields(headers.Get("Authorization"))
	if len(parts) != 2 || parts[0] != scheme {
		return "", ErrInvalidAuthHeader
	}
	return parts[1], nil
}

// Authorize validates the bearer token in headers and returns its user.
func (s *Service) Authorize(headers http.Header) (uuid.UUID, error) {
	token, err := s.GetBearerToken(headers)
	if err != nil {
		return uuid.Nil, err
	}
	return s.ValidateJWT(token)
}

func (s *Service) Now() time.Time {
	return s.clock.Now()
}
