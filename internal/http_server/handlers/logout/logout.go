package logout

import (
	"context"
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	"account_service/internal/http_server/cookies"
	"account_service/internal/http_server/handlers"
	"account_service/internal/http_server/middleware/authenticate"
	resp "account_service/internal/lib/api/response"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
)

type Logouter interface {
	Logout(ctx context.Context, caller models.Account) error
}

func New(log *slog.Logger, jar cookies.Jar, logouter Logouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		caller, ok := authenticate.Account(r.Context())
		if !ok {
			handlers.Fail(w, r, log, auth.ErrUnauthorized)
			return
		}

		if err := logouter.Logout(r.Context(), caller); err != nil {
			handlers.Fail(w, r, log, err)
			return
		}

		jar.Clear(w)

		log.Info("user logged out", slog.String("uid", caller.ID.String()))

		resp.Render(w, r, resp.OK(http.StatusOK, struct{}{}, "User logged out"))
	}
}
