package login

import (
	"context"
	"log/slog"
	"net/http"

	"account_service/internal/http_server/cookies"
	"account_service/internal/http_server/handlers"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email" validate:"required_without=Username"`
	Password string `json:"password" validate:"required"`
}

type Response struct {
	User         models.Account `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

type Loginer interface {
	Login(ctx context.Context, username, email, password string) (models.Account, models.TokenPair, error)
}

func New(log *slog.Logger, validate *validator.Validate, jar cookies.Jar, loginer Loginer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			resp.Render(w, r, resp.Error(http.StatusBadRequest, "Failed to decode request"))
			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("invalid request", sl.Err(err))
			resp.Render(w, r, resp.ValidationError(validateErr))
			return
		}

		acc, pair, err := loginer.Login(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			handlers.Fail(w, r, log, err)
			return
		}

		jar.SetTokens(w, pair)

		log.Info("user logged in successfully", slog.String("uid", acc.ID.String()))

		resp.Render(w, r, resp.OK(http.StatusOK, Response{
			User:         acc,
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		}, "User logged in successfully"))
	}
}
