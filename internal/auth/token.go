package auth

import (
	"errors"
	"net/http"

	"github.com/clipcast/clipcast/internal/common/cnst"
)

// ErrMissingCredential is returned when the handshake carries no token.
var ErrMissingCredential = errors.New("missing credential")

// ExtractToken pulls the bearer credential from the websocket handshake
// request. The gateway accepts exactly one convention: the httpOnly
// access_token cookie set by the login controller.
func ExtractToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(cnst.AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", ErrMissingCredential
	}
	return cookie.Value, nil
}
