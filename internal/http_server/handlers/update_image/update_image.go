package updateImage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	"account_service/internal/http_server/handlers"
	"account_service/internal/http_server/middleware/authenticate"
	"account_service/internal/http_server/upload"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
)

type ImageUpdater interface {
	UpdateAvatar(ctx context.Context, caller models.Account, stagedPath string) (models.Account, error)
	UpdateCoverImage(ctx context.Context, caller models.Account, stagedPath string) (models.Account, error)
}

type updateFunc func(ctx context.Context, caller models.Account, stagedPath string) (models.Account, error)

func NewAvatar(log *slog.Logger, stager upload.Stager, updater ImageUpdater) http.HandlerFunc {
	return newHandler(log, stager, "avatar", updater.UpdateAvatar, "Avatar image updated successfully")
}

func NewCoverImage(log *slog.Logger, stager upload.Stager, updater ImageUpdater) http.HandlerFunc {
	return newHandler(log, stager, "coverImage", updater.UpdateCoverImage, "Cover image updated successfully")
}

func newHandler(log *slog.Logger, stager upload.Stager, field string, update updateFunc, okMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.update_image.New"

		log := log.With(
			slog.String("op", op),
			slog.String("field", field),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		caller, ok := authenticate.Account(r.Context())
		if !ok {
			handlers.Fail(w, r, log, auth.ErrUnauthorized)
			return
		}

		if err := stager.Parse(w, r); err != nil {
			if errors.Is(err, upload.ErrTooLarge) {
				log.Info("request body too large", sl.Err(err))
				resp.Render(w, r, resp.Error(http.StatusRequestEntityTooLarge, "Request body too large"))
				return
			}

			log.Error("failed to parse multipart form", sl.Err(err))
			resp.Render(w, r, resp.Error(http.StatusBadRequest, "Failed to decode request"))
			return
		}

		path, err := stager.Stage(r, field)
		defer upload.Cleanup(r, path)

		if err != nil && !errors.Is(err, upload.ErrNoFile) {
			log.Error("failed to stage file", sl.Err(err))
			resp.Render(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))
			return
		}

		acc, err := update(r.Context(), caller, path)
		if err != nil {
			handlers.Fail(w, r, log, err)
			return
		}

		resp.Render(w, r, resp.OK(http.StatusOK, acc, okMsg))
	}
}
