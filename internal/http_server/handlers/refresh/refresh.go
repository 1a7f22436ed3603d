package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"account_service/internal/http_server/cookies"
	"account_service/internal/http_server/handlers"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Request struct {
	RefreshToken string `json:"refreshToken"`
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
}

// New reads the refresh token from its cookie, falling back to the JSON body.
func New(log *slog.Logger, jar cookies.Jar, refresher Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var token string

		if c, err := r.Cookie(cookies.RefreshToken); err == nil {
			token = c.Value
		}

		if token == "" {
			var req Request

			if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
				log.Error("failed to decode request body", sl.Err(err))
				resp.Render(w, r, resp.Error(http.StatusBadRequest, "Failed to decode request"))
				return
			}

			token = req.RefreshToken
		}

		pair, err := refresher.Refresh(r.Context(), token)
		if err != nil {
			handlers.Fail(w, r, log, err)
			return
		}

		jar.SetTokens(w, pair)

		log.Info("tokens refreshed successfully")

		resp.Render(w, r, resp.OK(http.StatusOK, pair, "Access token refreshed"))
	}
}
