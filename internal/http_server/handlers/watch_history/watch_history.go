package watchHistory

import (
	"context"
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	"account_service/internal/http_server/handlers"
	"account_service/internal/http_server/middleware/authenticate"
	resp "account_service/internal/lib/api/response"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
)

type HistoryProvider interface {
	WatchHistory(ctx context.Context, caller models.Account) ([]models.Video, error)
}

func New(log *slog.Logger, provider HistoryProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.watch_history.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		caller, ok := authenticate.Account(r.Context())
		if !ok {
			handlers.Fail(w, r, log, auth.ErrUnauthorized)
			return
		}

		videos, err := provider.WatchHistory(r.Context(), caller)
		if err != nil {
			handlers.Fail(w, r, log, err)
			return
		}

		resp.Render(w, r, resp.OK(http.StatusOK, videos, "Watch history fetched successfully"))
	}
}
