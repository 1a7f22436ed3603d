package janitor

import (
	"context"
	"encoding/json"
	"log/slog"

	sl "account_service/internal/lib/logger"
	"account_service/internal/models"
)

type BlobDeleter interface {
	Delete(ctx context.Context, url string) error
}

// Janitor removes blobs that no account references anymore.
// Failures are logged and dropped; a blob that survives is only wasted space.
type Janitor struct {
	log   *slog.Logger
	blobs BlobDeleter
}

func New(log *slog.Logger, blobs BlobDeleter) *Janitor {
	return &Janitor{
		log:   log,
		blobs: blobs,
	}
}

// Handle processes one queued cleanup message.
func (j *Janitor) Handle(ctx context.Context, body []byte) {
	const op = "janitor.Handle"

	log := j.log.With(slog.String("op", op))

	var msg models.BlobCleanup
	if err := json.Unmarshal(body, &msg); err != nil {
		log.Error("failed to unmarshal message", sl.Err(err))
		return
	}

	if msg.URL == "" {
		log.Warn("cleanup message without url", slog.String("reason", msg.Reason))
		return
	}

	log = log.With(slog.String("url", msg.URL), slog.String("reason", msg.Reason))

	if err := j.blobs.Delete(ctx, msg.URL); err != nil {
		log.Error("failed to delete blob", sl.Err(err))
		return
	}

	log.Info("blob deleted")
}
