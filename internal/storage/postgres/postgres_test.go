package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"account_service/internal/config"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	cfg := &config.Config{
		Postgres: config.Postgres{
			Host:     "db",
			Port:     5433,
			User:     "app",
			Password: "secret",
			DBName:   "accounts",
			SSLMode:  "disable",
		},
	}

	assert.Equal(t, "host=db port=5433 user=app password=secret database=accounts sslmode=disable", dsn(cfg))
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}

	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", dup)))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("23505")))
	assert.False(t, isUniqueViolation(nil))
}

func TestParseIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := parseIDs([]string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	ids, err = parseIDs(nil)
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	_, err = parseIDs([]string{"not-a-uuid"})
	assert.Error(t, err)
}

func TestDeref(t *testing.T) {
	s := "bob"

	assert.Equal(t, "bob", deref(&s))
	assert.Equal(t, "", deref(nil))
}

var accountCols = []string{
	"id", "username", "email", "full_name", "avatar_url", "cover_image_url",
	"password_hash", "refresh_token_hash", "created_at", "updated_at", "watch_history",
}

func newMockRepo(t *testing.T) (*PostgresRepo, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return &PostgresRepo{db: mock}, mock
}

func accountRow(acc models.Account, history ...uuid.UUID) []any {
	ids := make([]string, 0, len(history))
	for _, id := range history {
		ids = append(ids, id.String())
	}

	return []any{
		acc.ID, acc.Username, acc.Email, acc.FullName, acc.Avatar, acc.CoverImage,
		string(acc.PassHash), acc.RefreshTokenHash, acc.CreatedAt, acc.UpdatedAt, ids,
	}
}

func sampleAccount() models.Account {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	return models.Account{
		ID:               uuid.New(),
		Username:         "alice",
		Email:            "alice@example.com",
		FullName:         "Alice Doe",
		Avatar:           "http://cdn/avatar.png",
		PassHash:         []byte("$2a$10$hash"),
		RefreshTokenHash: "digest",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestCreateAccount(t *testing.T) {
	repo, mock := newMockRepo(t)
	acc := sampleAccount()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs(acc.ID, acc.Username, acc.Email, acc.FullName, string(acc.PassHash), acc.Avatar, acc.CoverImage).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(acc.ID))

	id, err := repo.CreateAccount(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAccount_Duplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO accounts")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"})

	_, err := repo.CreateAccount(context.Background(), sampleAccount())
	assert.ErrorIs(t, err, storage.ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountByUsernameOrEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	acc := sampleAccount()
	first, second := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.username = $1 OR lower(a.email) = $2")).
		WithArgs("alice", "alice@example.com").
		WillReturnRows(pgxmock.NewRows(accountCols).AddRow(accountRow(acc, first, second)...))

	got, err := repo.AccountByUsernameOrEmail(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, acc.Email, got.Email)
	assert.Equal(t, acc.PassHash, got.PassHash)
	assert.Equal(t, "digest", got.RefreshTokenHash)
	assert.Equal(t, []uuid.UUID{first, second}, got.WatchHistory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.id = $1")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(accountCols))

	_, err := repo.AccountByID(context.Background(), id)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRefreshTokenHash(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET refresh_token_hash = $2")).
		WithArgs(id, "digest").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.SetRefreshTokenHash(context.Background(), id, "digest"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePassword_UnknownAccount(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET password_hash = $2")).
		WithArgs(id, "new-hash").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePassword(context.Background(), id, []byte("new-hash"))
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDetails(t *testing.T) {
	repo, mock := newMockRepo(t)
	acc := sampleAccount()
	acc.FullName = "Alice Smith"

	mock.ExpectQuery(regexp.QuoteMeta("SET full_name = COALESCE(NULLIF($2, ''), a.full_name)")).
		WithArgs(acc.ID, "Alice Smith", "").
		WillReturnRows(pgxmock.NewRows(accountCols).AddRow(accountRow(acc)...))

	got, err := repo.UpdateDetails(context.Background(), acc.ID, "Alice Smith", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", got.FullName)
	assert.Equal(t, acc.Email, got.Email)
	assert.Empty(t, got.WatchHistory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateDetails_EmailTaken(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts a")).
		WithArgs(id, "", "bob@example.com").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_lower_key"})

	_, err := repo.UpdateDetails(context.Background(), id, "", "bob@example.com")
	assert.ErrorIs(t, err, storage.ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAvatar_ReturnsPreviousURL(t *testing.T) {
	repo, mock := newMockRepo(t)
	acc := sampleAccount()
	acc.Avatar = "http://cdn/new.png"

	cols := append([]string{"previous"}, accountCols...)
	row := append([]any{"http://cdn/old.png"}, accountRow(acc)...)

	mock.ExpectQuery(regexp.QuoteMeta("SET avatar_url = $2")).
		WithArgs(acc.ID, "http://cdn/new.png").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(row...))

	got, previous, err := repo.UpdateAvatar(context.Background(), acc.ID, "http://cdn/new.png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/old.png", previous)
	assert.Equal(t, "http://cdn/new.png", got.Avatar)
	assert.Equal(t, acc.ID, got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCoverImage_UnknownAccount(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SET cover_image_url = $2")).
		WithArgs(id, "http://cdn/cover.png").
		WillReturnRows(pgxmock.NewRows(append([]string{"previous"}, accountCols...)))

	_, _, err := repo.UpdateCoverImage(context.Background(), id, "http://cdn/cover.png")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var profileCols = []string{
	"id", "username", "email", "full_name", "avatar_url", "cover_image_url",
	"subscribers_count", "channels_subscribed_to_count", "is_subscribed",
}

func TestChannelProfile(t *testing.T) {
	repo, mock := newMockRepo(t)
	channelID, viewer := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.username = $1")).
		WithArgs("alice", &viewer).
		WillReturnRows(pgxmock.NewRows(profileCols).AddRow(
			channelID, "alice", "alice@example.com", "Alice Doe", "http://cdn/a.png", "",
			int64(3), int64(2), true,
		))

	p, err := repo.ChannelProfile(context.Background(), "alice", &viewer)
	require.NoError(t, err)

	assert.Equal(t, channelID, p.ID)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, int64(3), p.SubscribersCount)
	assert.Equal(t, int64(2), p.ChannelsSubscribedToCount)
	assert.True(t, p.IsSubscribed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelProfile_AnonymousViewer(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.username = $1")).
		WithArgs("alice", (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows(profileCols).AddRow(
			uuid.New(), "alice", "alice@example.com", "Alice Doe", "http://cdn/a.png", "",
			int64(0), int64(0), false,
		))

	p, err := repo.ChannelProfile(context.Background(), "alice", nil)
	require.NoError(t, err)
	assert.False(t, p.IsSubscribed)
	assert.Zero(t, p.SubscribersCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelProfile_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.username = $1")).
		WithArgs("ghost", (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows(profileCols))

	_, err := repo.ChannelProfile(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, storage.ErrChannelNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var videoCols = []string{
	"id", "video_file", "thumbnail", "title", "description",
	"duration", "views", "is_published", "created_at",
	"owner_id", "owner_username", "owner_full_name", "owner_avatar",
}

func TestWatchHistory(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()
	first, second := uuid.New(), uuid.New()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	ownerID := uuid.New()
	ownerUsername, ownerFullName, ownerAvatar := "bob", "Bob Roe", "http://cdn/bob.png"

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY w.position")).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows(videoCols).
			AddRow(first, "http://cdn/v1.mp4", "http://cdn/t1.png", "First", "",
				12.5, int64(10), true, created,
				&ownerID, &ownerUsername, &ownerFullName, &ownerAvatar).
			AddRow(second, "http://cdn/v2.mp4", "http://cdn/t2.png", "Second", "orphaned",
				3.0, int64(0), false, created,
				nil, nil, nil, nil))

	videos, err := repo.WatchHistory(context.Background(), accountID)
	require.NoError(t, err)
	require.Len(t, videos, 2)

	assert.Equal(t, first, videos[0].ID)
	assert.Equal(t, 12.5, videos[0].Duration)
	require.NotNil(t, videos[0].Owner)
	assert.Equal(t, models.VideoOwner{
		ID:       ownerID,
		Username: "bob",
		FullName: "Bob Roe",
		Avatar:   "http://cdn/bob.png",
	}, *videos[0].Owner)

	assert.Equal(t, second, videos[1].ID)
	assert.False(t, videos[1].IsPublished)
	assert.Nil(t, videos[1].Owner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchHistory_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM watch_history w")).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows(videoCols))

	videos, err := repo.WatchHistory(context.Background(), accountID)
	require.NoError(t, err)
	assert.NotNil(t, videos)
	assert.Empty(t, videos)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchHistory_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM watch_history w")).
		WithArgs(accountID).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.WatchHistory(context.Background(), accountID)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
