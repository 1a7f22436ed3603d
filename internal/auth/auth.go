package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"account_service/internal/lib/jwt"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"
	"account_service/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid user credentials")
	ErrInvalidPassword    = errors.New("invalid old password")
	ErrUnauthorized       = errors.New("unauthorized request")
	ErrUserExists         = errors.New("user with email or username already exists")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrChannelNotFound    = errors.New("channel does not exist")
	ErrAvatarRequired     = errors.New("avatar file is required")
	ErrCoverImageRequired = errors.New("cover image file is missing")
	ErrUploadFailed       = errors.New("error while uploading file")
	ErrInternal           = errors.New("something went wrong")
)

const (
	reasonRegisterFailed = "registration failed"
	reasonAvatarReplaced = "avatar replaced"
	reasonCoverReplaced  = "cover image replaced"
	reasonUpdateFailed   = "image update failed"
)

type Auth struct {
	log         *slog.Logger
	usrSaver    AccountSaver
	usrProvider AccountProvider
	tokens      TokenIssuer
	blobs       BlobStore
	orphans     OrphanPublisher
}

type AccountSaver interface {
	CreateAccount(ctx context.Context, acc models.Account) (uuid.UUID, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passHash []byte) error
	UpdateDetails(ctx context.Context, id uuid.UUID, fullName, email string) (models.Account, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (models.Account, string, error)
	UpdateCoverImage(ctx context.Context, id uuid.UUID, url string) (models.Account, string, error)
}

type AccountProvider interface {
	AccountByID(ctx context.Context, id uuid.UUID) (models.Account, error)
	AccountByUsernameOrEmail(ctx context.Context, username, email string) (models.Account, error)
	ChannelProfile(ctx context.Context, username string, viewer *uuid.UUID) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, accountID uuid.UUID) ([]models.Video, error)
}

type TokenIssuer interface {
	IssuePair(ctx context.Context, acc models.Account) (models.TokenPair, error)
	VerifyRefresh(ctx context.Context, token string) (models.Account, error)
	VerifyAccess(token string) (*jwt.AccessClaims, error)
	Clear(ctx context.Context, accountID uuid.UUID) error
}

type BlobStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// OrphanPublisher queues blobs that are no longer referenced for deletion.
type OrphanPublisher interface {
	SendMessage(ctx context.Context, msg models.BlobCleanup) error
}

func New(
	log *slog.Logger,
	accountSaver AccountSaver,
	accountProvider AccountProvider,
	tokens TokenIssuer,
	blobs BlobStore,
	orphans OrphanPublisher,
) *Auth {
	return &Auth{
		log:         log,
		usrSaver:    accountSaver,
		usrProvider: accountProvider,
		tokens:      tokens,
		blobs:       blobs,
		orphans:     orphans,
	}
}

type RegisterInput struct {
	FullName       string
	Username       string
	Email          string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

// Register creates an account with an uploaded avatar and optional cover image.
// The staged files are consumed by the blob store once uploading starts.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (models.Account, error) {
	const op = "auth.Register"

	log := a.log.With(slog.String("op", op))

	if isBlank(in.FullName, in.Username, in.Email, in.Password) {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	log = log.With(slog.String("username", username))

	_, err := a.usrProvider.AccountByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		log.Warn("user already exists")
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrUserExists)
	case !errors.Is(err, storage.ErrUserNotFound):
		log.Error("failed to check existing user", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if in.AvatarPath == "" {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrAvatarRequired)
	}

	avatarURL, err := a.blobs.Upload(ctx, in.AvatarPath)
	if err != nil || avatarURL == "" {
		log.Error("failed to upload avatar", sl.Err(errOrEmpty(err)))
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrUploadFailed)
	}

	var coverURL string
	if in.CoverImagePath != "" {
		coverURL, err = a.blobs.Upload(ctx, in.CoverImagePath)
		if err != nil {
			log.Warn("failed to upload cover image, continuing without it", sl.Err(err))
			coverURL = ""
		}
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		a.publishOrphans(ctx, log, reasonRegisterFailed, avatarURL, coverURL)
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	id, err := a.usrSaver.CreateAccount(ctx, models.Account{
		Username:   username,
		Email:      email,
		FullName:   strings.TrimSpace(in.FullName),
		Avatar:     avatarURL,
		CoverImage: coverURL,
		PassHash:   passHash,
	})
	if err != nil {
		a.publishOrphans(ctx, log, reasonRegisterFailed, avatarURL, coverURL)

		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	acc, err := a.usrProvider.AccountByID(ctx, id)
	if err != nil {
		log.Error("failed to read back created user", slog.String("uid", id.String()), sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("user registered", slog.String("uid", id.String()))

	return acc.Sanitized(), nil
}

// Login checks credentials and issues a fresh token pair.
// Unknown accounts and wrong passwords are reported separately but both map to 404 at the edge.
func (a *Auth) Login(ctx context.Context, username, email, password string) (models.Account, models.TokenPair, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	if (username == "" && email == "") || password == "" {
		return models.Account{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	acc, err := a.usrProvider.AccountByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			return models.Account{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))
		return models.Account{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if err := bcrypt.CompareHashAndPassword(acc.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return models.Account{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	pair, err := a.tokens.IssuePair(ctx, acc)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.Account{}, models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("user logged in successfully", slog.String("uid", acc.ID.String()))

	return acc.Sanitized(), pair, nil
}

func (a *Auth) Logout(ctx context.Context, caller models.Account) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op), slog.String("uid", caller.ID.String()))

	if err := a.tokens.Clear(ctx, caller.ID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		log.Error("failed to clear refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("logout successful")

	return nil
}

// Refresh exchanges a live refresh token for a new pair. The presented token stops working.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	const op = "auth.Refresh"

	log := a.log.With(slog.String("op", op))

	if refreshToken == "" {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	acc, err := a.tokens.VerifyRefresh(ctx, refreshToken)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	pair, err := a.tokens.IssuePair(ctx, acc)
	if err != nil {
		log.Error("failed to issue tokens", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("refresh successful", slog.String("uid", acc.ID.String()))

	return pair, nil
}

// Authenticate resolves an access token to the sanitized account it was issued for.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (models.Account, error) {
	const op = "auth.Authenticate"

	if accessToken == "" {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	claims, err := a.tokens.VerifyAccess(accessToken)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}

	acc, err := a.usrProvider.AccountByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}

		a.log.Error("failed to load user", slog.String("op", op), sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	return acc.Sanitized(), nil
}

func (a *Auth) ChangePassword(ctx context.Context, caller models.Account, oldPassword, newPassword string) error {
	const op = "auth.ChangePassword"

	log := a.log.With(slog.String("op", op), slog.String("uid", caller.ID.String()))

	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	// caller is sanitized, so the hash has to be re-read.
	acc, err := a.usrProvider.AccountByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to load user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if err := bcrypt.CompareHashAndPassword(acc.PassHash, []byte(oldPassword)); err != nil {
		log.Info("invalid old password")
		return fmt.Errorf("%s: %w", op, ErrInvalidPassword)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}

	if err := a.usrSaver.UpdatePassword(ctx, caller.ID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}

	log.Info("password changed")

	return nil
}

// UpdateDetails changes whichever of fullName and email is non-empty.
func (a *Auth) UpdateDetails(ctx context.Context, caller models.Account, fullName, email string) (models.Account, error) {
	const op = "auth.UpdateDetails"

	log := a.log.With(slog.String("op", op), slog.String("uid", caller.ID.String()))

	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	if fullName == "" && email == "" {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	acc, err := a.usrSaver.UpdateDetails(ctx, caller.ID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserExists):
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		case errors.Is(err, storage.ErrUserNotFound):
			return models.Account{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to update account details", sl.Err(err))
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	return acc.Sanitized(), nil
}

func (a *Auth) UpdateAvatar(ctx context.Context, caller models.Account, stagedPath string) (models.Account, error) {
	const op = "auth.UpdateAvatar"

	if stagedPath == "" {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrAvatarRequired)
	}

	acc, err := a.replaceImage(ctx, op, caller, stagedPath, a.usrSaver.UpdateAvatar, reasonAvatarReplaced)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

func (a *Auth) UpdateCoverImage(ctx context.Context, caller models.Account, stagedPath string) (models.Account, error) {
	const op = "auth.UpdateCoverImage"

	if stagedPath == "" {
		return models.Account{}, fmt.Errorf("%s: %w", op, ErrCoverImageRequired)
	}

	acc, err := a.replaceImage(ctx, op, caller, stagedPath, a.usrSaver.UpdateCoverImage, reasonCoverReplaced)
	if err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return acc, nil
}

type imageUpdater func(ctx context.Context, id uuid.UUID, url string) (models.Account, string, error)

func (a *Auth) replaceImage(
	ctx context.Context,
	op string,
	caller models.Account,
	stagedPath string,
	update imageUpdater,
	reason string,
) (models.Account, error) {
	log := a.log.With(slog.String("op", op), slog.String("uid", caller.ID.String()))

	url, err := a.blobs.Upload(ctx, stagedPath)
	if err != nil || url == "" {
		log.Error("failed to upload image", sl.Err(errOrEmpty(err)))
		return models.Account{}, ErrUploadFailed
	}

	acc, previous, err := update(ctx, caller.ID, url)
	if err != nil {
		a.publishOrphans(ctx, log, reasonUpdateFailed, url)

		if errors.Is(err, storage.ErrUserNotFound) {
			return models.Account{}, ErrUserNotFound
		}

		log.Error("failed to store image url", sl.Err(err))
		return models.Account{}, ErrInternal
	}

	if previous != url {
		a.publishOrphans(ctx, log, reason, previous)
	}

	return acc.Sanitized(), nil
}

// ChannelProfile returns the public profile of username. viewer is nil for anonymous callers.
func (a *Auth) ChannelProfile(ctx context.Context, username string, viewer *uuid.UUID) (models.ChannelProfile, error) {
	const op = "auth.ChannelProfile"

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	p, err := a.usrProvider.ChannelProfile(ctx, username, viewer)
	if err != nil {
		if errors.Is(err, storage.ErrChannelNotFound) {
			return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, ErrChannelNotFound)
		}

		a.log.Error("failed to load channel profile", slog.String("op", op), sl.Err(err))
		return models.ChannelProfile{}, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	return p, nil
}

func (a *Auth) WatchHistory(ctx context.Context, caller models.Account) ([]models.Video, error) {
	const op = "auth.WatchHistory"

	videos, err := a.usrProvider.WatchHistory(ctx, caller.ID)
	if err != nil {
		a.log.Error("failed to load watch history", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, ErrInternal)
	}

	return videos, nil
}

// publishOrphans queues urls for deletion. A failed publish only leaks storage, so it is logged and ignored.
func (a *Auth) publishOrphans(ctx context.Context, log *slog.Logger, reason string, urls ...string) {
	if a.orphans == nil {
		return
	}

	for _, url := range urls {
		if url == "" {
			continue
		}

		err := a.orphans.SendMessage(ctx, models.BlobCleanup{URL: url, Reason: reason})
		if err != nil {
			log.Warn("failed to queue blob cleanup", slog.String("url", url), sl.Err(err))
		}
	}
}

func isBlank(fields ...string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return true
		}
	}
	return false
}

func errOrEmpty(err error) error {
	if err != nil {
		return err
	}
	return errors.New("empty url returned")
}
