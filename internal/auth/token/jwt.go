package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionDuration = 7 * 24 * time.Hour

// ErrInvalidToken covers every verification failure: malformed token, bad
// signature, expired claims, or a missing identity claim. Callers must not
// learn which one it was.
var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type Identity struct {
	UserID string
	Email  string
	Role   string
}

type SecretSource interface {
	SigningSecret(ctx context.Context) ([]byte, error)
}

type JWTService struct {
	issuer  string
	secrets SecretSource
	parser  *jwt.Parser
}

func NewJWTService(issuer string, secrets SecretSource) *JWTService {
	return &JWTService{
		issuer:  issuer,
		secrets: secrets,
		parser: jwt.NewParser(
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		),
	}
}

// Issue signs a session token for the given identity. A zero validFor means
// the default session duration.
func (j *JWTService) Issue(ctx context.Context, userID, email, role string, validFor time.Duration) (string, error) {
	signingSecret, err := j.secrets.SigningSecret(ctx)
	if err != nil {
		return "", err
	}

	if validFor == 0 {
		validFor = sessionDuration
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validFor)),
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}

	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return jwtToken.SignedString(signingSecret)
}

// Verify checks the token and returns the embedded identity. A secret store
// failure is returned as-is so callers can distinguish an unreachable
// backend from a bad token; everything else collapses into ErrInvalidToken.
func (j *JWTService) Verify(ctx context.Context, jwtToken string) (Identity, error) {
	signingSecret, err := j.secrets.SigningSecret(ctx)
	if err != nil {
		return Identity{}, err
	}

	var claims Claims
	_, err = j.parser.ParseWithClaims(jwtToken, &claims, func(_ *jwt.Token) (any, error) {
		return signingSecret, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	if claims.UserID == "" || claims.Email == "" || claims.Role == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
