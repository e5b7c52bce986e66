package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "tok-123"})

	tok, err := ExtractToken(r)
	assert.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestExtractToken_Missing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
	tok, err := ExtractToken(r)
	assert.Empty(t, tok)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestExtractToken_EmptyValue(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
	r.AddCookie(&http.Cookie{Name: "access_token", Value: ""})
	tok, err := ExtractToken(r)
	assert.Empty(t, tok)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestExtractToken_OtherCookiesIgnored(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws/notifications", nil)
	r.AddCookie(&http.Cookie{Name: "session", Value: "nope"})
	r.AddCookie(&http.Cookie{Name: "access_token", Value: "tok-456"})
	tok, err := ExtractToken(r)
	assert.NoError(t, err)
	assert.Equal(t, "tok-456", tok)
}
