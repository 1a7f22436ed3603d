package currentUser

import (
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	"account_service/internal/http_server/handlers"
	"account_service/internal/http_server/middleware/authenticate"
	resp "account_service/internal/lib/api/response"

	"github.com/go-chi/chi/middleware"
)

// New returns the caller resolved by the authenticate middleware. No store round trip is needed.
func New(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.current_user.New"

		caller, ok := authenticate.Account(r.Context())
		if !ok {
			handlers.Fail(w, r, log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			), auth.ErrUnauthorized)
			return
		}

		resp.Render(w, r, resp.OK(http.StatusOK, caller.Sanitized(), "User fetched successfully"))
	}
}
