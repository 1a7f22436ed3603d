package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"account_service/internal/auth"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"
)

var statuses = []struct {
	err    error
	status int
}{
	{auth.ErrInvalidInput, http.StatusBadRequest},
	{auth.ErrAvatarRequired, http.StatusBadRequest},
	{auth.ErrCoverImageRequired, http.StatusBadRequest},
	{auth.ErrUploadFailed, http.StatusBadRequest},
	{auth.ErrUnauthorized, http.StatusUnauthorized},
	{auth.ErrInvalidPassword, http.StatusUnauthorized},
	// wrong login password is reported as not found, same as an unknown user.
	{auth.ErrInvalidCredentials, http.StatusNotFound},
	{auth.ErrUserNotFound, http.StatusNotFound},
	{auth.ErrChannelNotFound, http.StatusNotFound},
	{auth.ErrUserExists, http.StatusConflict},
}

// Status maps an account operation error onto an HTTP status and client message.
func Status(err error) (int, string) {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status, capitalize(s.err.Error())
		}
	}

	return http.StatusInternalServerError, "Internal error"
}

// Fail renders err as an error envelope. Only unexpected errors are logged as errors.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, msg := Status(err)

	if status == http.StatusInternalServerError {
		log.Error("request failed", sl.Err(err))
	} else {
		log.Info("request rejected", slog.Int("status", status), sl.Err(err))
	}

	resp.Render(w, r, resp.Error(status, msg))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
