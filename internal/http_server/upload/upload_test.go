package upload

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("fullName", "Alice"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())

	return r
}

func TestStage(t *testing.T) {
	s := Stager{Dir: t.TempDir(), MaxMemory: 1 << 20}
	r := multipartRequest(t, map[string][]byte{"avatar": []byte("avatar-bytes")})

	require.NoError(t, s.Parse(httptest.NewRecorder(), r))
	assert.Equal(t, "Alice", r.FormValue("fullName"))

	path, err := s.Stage(r, "avatar")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "avatar-bytes", string(content))

	Cleanup(r, path)

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStage_MissingField(t *testing.T) {
	s := Stager{Dir: t.TempDir(), MaxMemory: 1 << 20}
	r := multipartRequest(t, map[string][]byte{"avatar": []byte("x")})
	require.NoError(t, s.Parse(httptest.NewRecorder(), r))

	_, err := s.Stage(r, "coverImage")
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestParse_NotMultipart(t *testing.T) {
	s := Stager{Dir: t.TempDir(), MaxMemory: 1 << 20}
	r := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString(`{"a":1}`))
	r.Header.Set("Content-Type", "application/json")

	assert.Error(t, s.Parse(httptest.NewRecorder(), r))
}

func TestParse_BodyTooLarge(t *testing.T) {
	s := Stager{Dir: t.TempDir(), MaxMemory: 1 << 10, MaxBody: 512}
	r := multipartRequest(t, map[string][]byte{"avatar": bytes.Repeat([]byte("x"), 4096)})

	err := s.Parse(httptest.NewRecorder(), r)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestParse_WithinLimit(t *testing.T) {
	s := Stager{Dir: t.TempDir(), MaxMemory: 1 << 10, MaxBody: 1 << 20}
	r := multipartRequest(t, map[string][]byte{"avatar": bytes.Repeat([]byte("x"), 4096)})

	require.NoError(t, s.Parse(httptest.NewRecorder(), r))

	path, err := s.Stage(r, "avatar")
	require.NoError(t, err)
	Cleanup(r, path)
}

func TestCleanup_IgnoresMissingPaths(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/upload", nil)

	assert.NotPanics(t, func() {
		Cleanup(r, "", "/definitely/not/here")
	})
}
