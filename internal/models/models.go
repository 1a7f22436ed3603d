package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registered channel owner. PassHash and RefreshTokenHash never leave the service.
type Account struct {
	ID               uuid.UUID   `json:"id"`
	Username         string      `json:"username"`
	Email            string      `json:"email"`
	FullName         string      `json:"fullName"`
	Avatar           string      `json:"avatar"`
	CoverImage       string      `json:"coverImage"`
	WatchHistory     []uuid.UUID `json:"watchHistory"`
	PassHash         []byte      `json:"-"`
	RefreshTokenHash string      `json:"-"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Sanitized returns a copy of a with credential material stripped.
func (a Account) Sanitized() Account {
	a.PassHash = nil
	a.RefreshTokenHash = ""

	if a.WatchHistory == nil {
		a.WatchHistory = []uuid.UUID{}
	}

	return a
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type ChannelProfile struct {
	ID                        uuid.UUID `json:"id"`
	Username                  string    `json:"username"`
	Email                     string    `json:"email"`
	FullName                  string    `json:"fullName"`
	Avatar                    string    `json:"avatar"`
	CoverImage                string    `json:"coverImage"`
	SubscribersCount          int64     `json:"subscribersCount"`
	ChannelsSubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed              bool      `json:"isSubscribed"`
}

type VideoOwner struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"fullName"`
	Avatar   string    `json:"avatar"`
}

type Video struct {
	ID          uuid.UUID   `json:"id"`
	VideoFile   string      `json:"videoFile"`
	Thumbnail   string      `json:"thumbnail"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Duration    float64     `json:"duration"`
	Views       int64       `json:"views"`
	IsPublished bool        `json:"isPublished"`
	Owner       *VideoOwner `json:"owner"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// BlobCleanup is published when a stored blob is no longer referenced by any account.
type BlobCleanup struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}
