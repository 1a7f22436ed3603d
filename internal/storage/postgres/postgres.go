package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account_service/internal/config"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// querier is the subset of *pgxpool.Pool the repository runs its statements through.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepo struct {
	pool *pgxpool.Pool
	db   querier
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool, db: pool}, nil
}

// accountColumns selects a full account row aliased as a, watch history included in order.
const accountColumns = `
	a.id, a.username, a.email, a.full_name, a.avatar_url, a.cover_image_url,
	a.password_hash, a.refresh_token_hash, a.created_at, a.updated_at,
	COALESCE((
		SELECT array_agg(w.video_id::text ORDER BY w.position)
		FROM watch_history w
		WHERE w.account_id = a.id
	), '{}')`

func scanAccount(row pgx.Row, extra ...any) (models.Account, error) {
	var (
		acc      models.Account
		passHash string
		history  []string
	)

	dest := append(extra,
		&acc.ID,
		&acc.Username,
		&acc.Email,
		&acc.FullName,
		&acc.Avatar,
		&acc.CoverImage,
		&passHash,
		&acc.RefreshTokenHash,
		&acc.CreatedAt,
		&acc.UpdatedAt,
		&history,
	)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrUserNotFound
		}
		return models.Account{}, err
	}

	acc.PassHash = []byte(passHash)

	ids, err := parseIDs(history)
	if err != nil {
		return models.Account{}, err
	}
	acc.WatchHistory = ids

	return acc, nil
}

func (r *PostgresRepo) CreateAccount(ctx context.Context, acc models.Account) (uuid.UUID, error) {
	const op = "storage.postgres.CreateAccount"

	query := `
		INSERT INTO accounts (id, username, email, full_name, password_hash, avatar_url, cover_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id;
	`

	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}

	var id uuid.UUID

	err := r.db.QueryRow(ctx, query,
		acc.ID,
		acc.Username,
		acc.Email,
		acc.FullName,
		string(acc.PassHash),
		acc.Avatar,
		acc.CoverImage,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, storage.ErrUserExists
		}

		return uuid.Nil, fmt.Errorf("%s: failed to save account: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) AccountByID(ctx context.Context, id uuid.UUID) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts a WHERE a.id = $1;`

	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// AccountByUsernameOrEmail prefers a username match when the two point at different accounts.
func (r *PostgresRepo) AccountByUsernameOrEmail(ctx context.Context, username, email string) (models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		WHERE a.username = $1 OR lower(a.email) = $2
		ORDER BY (a.username = $1) DESC
		LIMIT 1;
	`

	return scanAccount(r.db.QueryRow(ctx, query, username, email))
}

func (r *PostgresRepo) SetRefreshTokenHash(ctx context.Context, id uuid.UUID, hash string) error {
	const op = "storage.postgres.SetRefreshTokenHash"

	query := `UPDATE accounts SET refresh_token_hash = $2 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passHash []byte) error {
	const op = "storage.postgres.UpdatePassword"

	query := `UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, string(passHash))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// UpdateDetails changes the non-empty fields among fullName and email.
func (r *PostgresRepo) UpdateDetails(ctx context.Context, id uuid.UUID, fullName, email string) (models.Account, error) {
	const op = "storage.postgres.UpdateDetails"

	query := `
		UPDATE accounts a
		SET full_name = COALESCE(NULLIF($2, ''), a.full_name),
		    email = COALESCE(NULLIF($3, ''), a.email),
		    updated_at = NOW()
		WHERE a.id = $1
		RETURNING ` + accountColumns + `;
	`

	acc, err := scanAccount(r.db.QueryRow(ctx, query, id, fullName, email))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, storage.ErrUserExists
		}
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Account{}, err
		}

		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

// UpdateAvatar stores url and returns the updated account along with the URL it replaced.
func (r *PostgresRepo) UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (models.Account, string, error) {
	return r.replaceImage(ctx, "storage.postgres.UpdateAvatar", "avatar_url", id, url)
}

// UpdateCoverImage stores url and returns the updated account along with the URL it replaced.
func (r *PostgresRepo) UpdateCoverImage(ctx context.Context, id uuid.UUID, url string) (models.Account, string, error) {
	return r.replaceImage(ctx, "storage.postgres.UpdateCoverImage", "cover_image_url", id, url)
}

// column is always one of the two image columns above, never user input.
func (r *PostgresRepo) replaceImage(ctx context.Context, op, column string, id uuid.UUID, url string) (models.Account, string, error) {
	query := fmt.Sprintf(`
		UPDATE accounts a
		SET %[1]s = $2, updated_at = NOW()
		FROM (SELECT id, %[1]s AS previous FROM accounts WHERE id = $1 FOR UPDATE) prev
		WHERE a.id = prev.id
		RETURNING prev.previous, %[2]s;
	`, column, accountColumns)

	var previous string

	acc, err := scanAccount(r.db.QueryRow(ctx, query, id, url), &previous)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Account{}, "", err
		}

		return models.Account{}, "", fmt.Errorf("%s: %w", op, err)
	}

	return acc, previous, nil
}

// ChannelProfile counts both sides of the subscriptions relation for username.
// viewer may be nil for anonymous callers, in which case IsSubscribed is false.
func (r *PostgresRepo) ChannelProfile(ctx context.Context, username string, viewer *uuid.UUID) (models.ChannelProfile, error) {
	const op = "storage.postgres.ChannelProfile"

	query := `
		SELECT
			a.id, a.username, a.email, a.full_name, a.avatar_url, a.cover_image_url,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = a.id) AS subscribers_count,
			(SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = a.id) AS channels_subscribed_to_count,
			EXISTS (
				SELECT 1 FROM subscriptions s
				WHERE s.channel_id = a.id AND s.subscriber_id = $2
			) AS is_subscribed
		FROM accounts a
		WHERE a.username = $1;
	`

	var p models.ChannelProfile

	err := r.db.QueryRow(ctx, query, username, viewer).Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.FullName,
		&p.Avatar,
		&p.CoverImage,
		&p.SubscribersCount,
		&p.ChannelsSubscribedToCount,
		&p.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, storage.ErrChannelNotFound
		}

		return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// WatchHistory joins the account's history against videos and each video's owner.
func (r *PostgresRepo) WatchHistory(ctx context.Context, accountID uuid.UUID) ([]models.Video, error) {
	const op = "storage.postgres.WatchHistory"

	query := `
		SELECT
			v.id, v.video_file, v.thumbnail, v.title, v.description,
			v.duration, v.views, v.is_published, v.created_at,
			o.id, o.username, o.full_name, o.avatar_url
		FROM watch_history w
		JOIN videos v ON v.id = w.video_id
		LEFT JOIN accounts o ON o.id = v.owner_id
		WHERE w.account_id = $1
		ORDER BY w.position;
	`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	videos := []models.Video{}

	for rows.Next() {
		var (
			v             models.Video
			ownerID       *uuid.UUID
			ownerUsername *string
			ownerFullName *string
			ownerAvatar   *string
		)

		err := rows.Scan(
			&v.ID,
			&v.VideoFile,
			&v.Thumbnail,
			&v.Title,
			&v.Description,
			&v.Duration,
			&v.Views,
			&v.IsPublished,
			&v.CreatedAt,
			&ownerID,
			&ownerUsername,
			&ownerFullName,
			&ownerAvatar,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if ownerID != nil {
			v.Owner = &models.VideoOwner{
				ID:       *ownerID,
				Username: deref(ownerUsername),
				FullName: deref(ownerFullName),
				Avatar:   deref(ownerAvatar),
			}
		}

		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return videos, nil
}

func (r *PostgresRepo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))

	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse watch history id %q: %w", s, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// dsn builds the connection string for pgxpool.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
