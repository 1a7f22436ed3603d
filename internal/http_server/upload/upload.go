package upload

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

var (
	ErrNoFile   = errors.New("no file uploaded")
	ErrTooLarge = errors.New("request body too large")
)

// Stager copies multipart file parts into temp files the blob store can read from disk.
// MaxBody caps the whole request body; zero leaves it unbounded.
type Stager struct {
	Dir       string
	MaxMemory int64
	MaxBody   int64
}

func (s Stager) Parse(w http.ResponseWriter, r *http.Request) error {
	const op = "upload.Parse"

	if s.MaxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxBody)
	}

	if err := r.ParseMultipartForm(s.MaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%s: %w", op, ErrTooLarge)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Stage writes the first file of field to a new temp file and returns its path.
// It returns ErrNoFile if the request carries no such part.
func (s Stager) Stage(r *http.Request, field string) (string, error) {
	const op = "upload.Stage"

	src, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", ErrNoFile
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(s.Dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return dst.Name(), nil
}

// Cleanup removes staged paths that are still on disk along with the form's own temp files.
func Cleanup(r *http.Request, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		_ = os.Remove(p)
	}

	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}
