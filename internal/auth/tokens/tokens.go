package tokens

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account_service/internal/config"
	"account_service/internal/lib/jwt"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrUnauthorized = errors.New("refresh token is either invalid or used")
	ErrIssue        = errors.New("failed to issue tokens")
)

type AccountProvider interface {
	AccountByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash string) error
}

// Service issues access/refresh pairs and keeps exactly one live refresh token per account.
// A login or refresh overwrites the slot, so any earlier refresh token stops verifying.
type Service struct {
	log           *slog.Logger
	accounts      AccountProvider
	accessSecret  string
	accessTTL     time.Duration
	refreshSecret string
	refreshTTL    time.Duration
}

func New(log *slog.Logger, accounts AccountProvider, cfg config.Tokens) *Service {
	return &Service{
		log:           log,
		accounts:      accounts,
		accessSecret:  cfg.AccessTokenSecret,
		accessTTL:     cfg.AccessTokenTTL,
		refreshSecret: cfg.RefreshTokenSecret,
		refreshTTL:    cfg.RefreshTokenTTL,
	}
}

// IssuePair signs a new pair for acc and stores the refresh token digest on the account.
func (s *Service) IssuePair(ctx context.Context, acc models.Account) (models.TokenPair, error) {
	const op = "tokens.IssuePair"

	log := s.log.With(slog.String("op", op), slog.String("uid", acc.ID.String()))

	accessToken, err := jwt.NewAccessToken(acc, s.accessSecret, s.accessTTL)
	if err != nil {
		log.Error("failed to sign access token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrIssue)
	}

	refreshToken, err := jwt.NewRefreshToken(acc.ID, s.refreshSecret, s.refreshTTL)
	if err != nil {
		log.Error("failed to sign refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrIssue)
	}

	if err := s.accounts.SetRefreshTokenHash(ctx, acc.ID, digest(refreshToken)); err != nil {
		log.Error("failed to persist refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrIssue)
	}

	return models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// VerifyRefresh returns the account behind a refresh token that is validly signed,
// unexpired, and still the one stored on that account.
func (s *Service) VerifyRefresh(ctx context.Context, token string) (models.Account, error) {
	const op = "tokens.VerifyRefresh"

	log := s.log.With(slog.String("op", op))

	claims, err := jwt.ParseRefreshToken(token, s.refreshSecret)
	if err != nil {
		log.Info("rejected refresh token", sl.Err(err))
		return models.Account{}, ErrUnauthorized
	}

	acc, err := s.accounts.AccountByID(ctx, claims.AccountID)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			log.Error("failed to load account", sl.Err(err))
		}
		return models.Account{}, ErrUnauthorized
	}

	if acc.RefreshTokenHash == "" || subtle.ConstantTimeCompare([]byte(acc.RefreshTokenHash), []byte(digest(token))) != 1 {
		log.Warn("stale refresh token presented", slog.String("uid", acc.ID.String()))
		return models.Account{}, ErrUnauthorized
	}

	return acc, nil
}

func (s *Service) VerifyAccess(token string) (*jwt.AccessClaims, error) {
	claims, err := jwt.ParseAccessToken(token, s.accessSecret)
	if err != nil {
		return nil, ErrUnauthorized
	}

	return claims, nil
}

// Clear empties the refresh token slot of the account.
func (s *Service) Clear(ctx context.Context, accountID uuid.UUID) error {
	const op = "tokens.Clear"

	if err := s.accounts.SetRefreshTokenHash(ctx, accountID, ""); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
