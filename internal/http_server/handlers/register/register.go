package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	"account_service/internal/http_server/handlers"
	"account_service/internal/http_server/upload"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"
	"account_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	avatarField     = "avatar"
	coverImageField = "coverImage"
)

type Request struct {
	FullName string `json:"fullName" validate:"required,notblank"`
	Username string `json:"username" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,notblank"`
	Password string `json:"password" validate:"required,notblank"`
}

type Registerer interface {
	Register(ctx context.Context, in auth.RegisterInput) (models.Account, error)
}

// New handles multipart registration: four text fields, a required avatar and an optional cover image.
func New(log *slog.Logger, validate *validator.Validate, stager upload.Stager, registerer Registerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

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

		var staged []string
		defer func() { upload.Cleanup(r, staged...) }()

		req := Request{
			FullName: r.FormValue("fullName"),
			Username: r.FormValue("username"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Info("invalid request", sl.Err(err))
			resp.Render(w, r, resp.ValidationError(validateErr))
			return
		}

		in := auth.RegisterInput{
			FullName: req.FullName,
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
		}

		for field, dst := range map[string]*string{
			avatarField:     &in.AvatarPath,
			coverImageField: &in.CoverImagePath,
		} {
			path, err := stager.Stage(r, field)
			if err != nil {
				if errors.Is(err, upload.ErrNoFile) {
					continue
				}

				log.Error("failed to stage file", slog.String("field", field), sl.Err(err))
				resp.Render(w, r, resp.Error(http.StatusInternalServerError, "Internal error"))
				return
			}

			staged = append(staged, path)
			*dst = path
		}

		acc, err := registerer.Register(r.Context(), in)
		if err != nil {
			handlers.Fail(w, r, log, err)
			return
		}

		log.Info("user registered", slog.String("uid", acc.ID.String()))

		resp.Render(w, r, resp.OK(http.StatusCreated, acc, "User registered successfully"))
	}
}
