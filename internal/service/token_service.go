package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/classroom-workflow-api/internal/models"
	appErrors "github.com/noah-isme/classroom-workflow-api/pkg/errors"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
)

// TokenService validates HS256 bearer tokens. Issuing exists for tooling;
// login and sessions live outside this service.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret string, ttl time.Duration, clk clock.Clock) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, clock: clk}
}

// Issue signs an access token for the user.
func (s *TokenService) Issue(userID string, role models.UserRole) (string, time.Time, error) {
	if userID == "" || !role.Valid() {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "user id and a valid role are required")
	}
	issuedAt := s.clock.Now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, appErrors.Internal(err, "failed to sign token")
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}
