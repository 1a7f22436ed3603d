package changePassword

import (
	"context"
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	"account_service/internal/http_server/handlers"
	"account_service/internal/http_server/middleware/authenticate"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,notblank"`
}

type PasswordChanger interface {
	ChangePassword(ctx context.Context, caller models.Account, oldPassword, newPassword string) error
}

func New(log *slog.Logger, validate *validator.Validate, changer PasswordChanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.change_password.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		caller, ok := authenticate.Account(r.Context())
		if !ok {
			handlers.Fail(w, r, log, auth.ErrUnauthorized)
			return
		}

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

		if err := changer.ChangePassword(r.Context(), caller, req.OldPassword, req.NewPassword); err != nil {
			handlers.Fail(w, r, log, err)
			return
		}

		resp.Render(w, r, resp.OK(http.StatusOK, struct{}{}, "Password changed successfully"))
	}
}
