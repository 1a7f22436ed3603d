package janitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeBlobs struct {
	err     error
	deleted []string
}

func (f *fakeBlobs) Delete(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return f.err
}

func newTestJanitor(blobs BlobDeleter) *Janitor {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), blobs)
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		deleted []string
	}{
		{
			name:    "deletes referenced url",
			body:    `{"url":"https://cdn.example.com/a.png","reason":"avatar replaced"}`,
			deleted: []string{"https://cdn.example.com/a.png"},
		},
		{
			name:    "delete failure is swallowed",
			body:    `{"url":"https://cdn.example.com/b.png","reason":"cover replaced"}`,
			err:     errors.New("s3 down"),
			deleted: []string{"https://cdn.example.com/b.png"},
		},
		{
			name: "malformed body",
			body: `{not json`,
		},
		{
			name: "empty url",
			body: `{"reason":"avatar replaced"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blobs := &fakeBlobs{err: tt.err}
			j := newTestJanitor(blobs)

			assert.NotPanics(t, func() {
				j.Handle(context.Background(), []byte(tt.body))
			})
			assert.Equal(t, tt.deleted, blobs.deleted)
		})
	}
}
