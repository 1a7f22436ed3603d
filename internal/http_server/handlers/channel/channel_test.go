package channel

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"account_service/internal/auth"
	"account_service/internal/http_server/middleware/authenticate"
	"account_service/internal/models"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	subscribers map[uuid.UUID]bool
}

func (f fakeProvider) ChannelProfile(_ context.Context, username string, viewer *uuid.UUID) (models.ChannelProfile, error) {
	if username != "alice" {
		return models.ChannelProfile{}, auth.ErrChannelNotFound
	}
	p := models.ChannelProfile{Username: username, SubscribersCount: 3, ChannelsSubscribedToCount: 2}
	if viewer != nil {
		p.IsSubscribed = f.subscribers[*viewer]
	}
	return p, nil
}

func serve(t *testing.T, provider ProfileProvider, path string, caller *models.Account) (*httptest.ResponseRecorder, models.ChannelProfile) {
	t.Helper()

	router := chi.NewRouter()
	router.Get("/channel/{username}", New(slog.New(slog.NewTextHandler(io.Discard, nil)), provider))

	r := httptest.NewRequest(http.MethodGet, path, nil)
	if caller != nil {
		r = r.WithContext(authenticate.WithAccount(r.Context(), *caller))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	var body struct {
		Data models.ChannelProfile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	return w, body.Data
}

func TestChannel(t *testing.T) {
	subscriber := models.Account{ID: uuid.New()}
	stranger := models.Account{ID: uuid.New()}
	provider := fakeProvider{subscribers: map[uuid.UUID]bool{subscriber.ID: true}}

	w, p := serve(t, provider, "/channel/alice", &subscriber)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), p.SubscribersCount)
	assert.Equal(t, int64(2), p.ChannelsSubscribedToCount)
	assert.True(t, p.IsSubscribed)

	_, p = serve(t, provider, "/channel/alice", &stranger)
	assert.False(t, p.IsSubscribed)

	w, p = serve(t, provider, "/channel/alice", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, p.IsSubscribed)
}

func TestChannel_NotFound(t *testing.T) {
	w, _ := serve(t, fakeProvider{}, "/channel/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
