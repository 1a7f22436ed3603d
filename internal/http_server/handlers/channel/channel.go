package channel

import (
	"context"
	"log/slog"
	"net/http"

	"account_service/internal/http_server/handlers"
	"account_service/internal/http_server/middleware/authenticate"
	resp "account_service/internal/lib/api/response"
	"account_service/internal/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"
)

type ProfileProvider interface {
	ChannelProfile(ctx context.Context, username string, viewer *uuid.UUID) (models.ChannelProfile, error)
}

// New serves GET /channel/{username}. Anonymous callers are never reported as subscribed.
func New(log *slog.Logger, provider ProfileProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.channel.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var viewer *uuid.UUID
		if caller, ok := authenticate.Account(r.Context()); ok {
			viewer = &caller.ID
		}

		profile, err := provider.ChannelProfile(r.Context(), chi.URLParam(r, "username"), viewer)
		if err != nil {
			handlers.Fail(w, r, log, err)
			return
		}

		resp.Render(w, r, resp.OK(http.StatusOK, profile, "User channel fetched successfully"))
	}
}
