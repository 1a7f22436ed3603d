package authenticate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"account_service/internal/auth"
	"account_service/internal/http_server/cookies"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
)

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (models.Account, error)
}

type ctxKey struct{}

// New rejects requests without a valid access token and attaches the caller's account otherwise.
func New(log *slog.Logger, authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authenticate.New"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			acc, err := authenticator.Authenticate(r.Context(), token(r))
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					log.Info("unauthorized request")
					resp.Render(w, r, resp.Error(http.StatusUnauthorized, "Invalid access token"))
					return
				}

				log.Error("failed to authenticate", sl.Err(err))
				resp.Render(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
		}

		return http.HandlerFunc(fn)
	}
}

// Optional attaches the caller's account when a valid access token is present and lets anonymous requests through.
func Optional(log *slog.Logger, authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			tok := token(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}

			acc, err := authenticator.Authenticate(r.Context(), tok)
			if err != nil {
				log.Debug("ignoring invalid access token",
					slog.String("op", "middleware.authenticate.Optional"),
					sl.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
		}

		return http.HandlerFunc(fn)
	}
}

func WithAccount(ctx context.Context, acc models.Account) context.Context {
	return context.WithValue(ctx, ctxKey{}, acc)
}

// Account returns the authenticated caller, if any.
func Account(ctx context.Context) (models.Account, bool) {
	acc, ok := ctx.Value(ctxKey{}).(models.Account)
	return acc, ok
}

func token(r *http.Request) string {
	if c, err := r.Cookie(cookies.AccessToken); err == nil && c.Value != "" {
		return c.Value
	}

	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}

	return ""
}
