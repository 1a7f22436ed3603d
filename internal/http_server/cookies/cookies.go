package cookies

import (
	"net/http"

	"account_service/internal/models"
)

const (
	AccessToken  = "accessToken"
	RefreshToken = "refreshToken"
)

// Jar writes the session cookies. Both cookies are httpOnly; Secure is off only for local plain-http setups.
type Jar struct {
	Secure bool
}

func (j Jar) SetTokens(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, j.cookie(AccessToken, pair.AccessToken))
	http.SetCookie(w, j.cookie(RefreshToken, pair.RefreshToken))
}

func (j Jar) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessToken, RefreshToken} {
		c := j.cookie(name, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (j Jar) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.Secure,
	}
}
