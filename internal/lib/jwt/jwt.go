package jwt

import (
	"errors"
	"fmt"
	"time"

	"account_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of a short-lived access token.
type AccessClaims struct {
	AccountID uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token: the account id only.
type RefreshClaims struct {
	AccountID uuid.UUID `json:"id"`
	jwt.RegisteredClaims
}

func NewAccessToken(acc models.Account, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := AccessClaims{
		AccountID: acc.ID,
		Username:  acc.Username,
		Email:     acc.Email,
		FullName:  acc.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// NewRefreshToken signs a refresh token with a random jti, so two tokens issued
// within the same second never compare equal.
func NewRefreshToken(accountID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := RefreshClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseAccessToken(tokenStr, secret string) (*AccessClaims, error) {
	const op = "jwt.ParseAccessToken"

	claims := &AccessClaims{}
	if err := parse(tokenStr, secret, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.AccountID == uuid.Nil {
		return nil, fmt.Errorf("%s: missing account id: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

func ParseRefreshToken(tokenStr, secret string) (*RefreshClaims, error) {
	const op = "jwt.ParseRefreshToken"

	claims := &RefreshClaims{}
	if err := parse(tokenStr, secret, claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.AccountID == uuid.Nil {
		return nil, fmt.Errorf("%s: missing account id: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

func parse(tokenStr, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
