package response

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status  int      `json:"status"`
	Data    any      `json:"data,omitempty"`
	Message string   `json:"message"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors,omitempty"`
}

func OK(status int, data any, msg string) Response {
	return Response{
		Status:  status,
		Data:    data,
		Message: msg,
		Success: status < http.StatusBadRequest,
	}
}

func Error(status int, msg string) Response {
	return Response{
		Status:  status,
		Message: msg,
		Success: false,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required", "notblank":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "required_without":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is required when %s is missing", err.Field(), strings.ToLower(err.Param())))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Response{
		Status:  http.StatusBadRequest,
		Message: "Invalid request",
		Success: false,
		Errors:  errMsgs,
	}
}

// Render writes res using its own status code.
func Render(w http.ResponseWriter, r *http.Request, res Response) {
	render.Status(r, res.Status)
	render.JSON(w, r, res)
}
