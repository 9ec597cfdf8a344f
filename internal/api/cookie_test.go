package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateCookie_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, setStateCookie(rec, testCookieSecret, "state-1"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	state, err := readStateCookie(req, testCookieSecret)
	require.NoError(t, err)
	require.Equal(t, "state-1", state)
}

func TestStateCookie_WrongSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, setStateCookie(rec, testCookieSecret, "state-1"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	_, err := readStateCookie(req, "a-different-signing-secret-entirely")
	require.Error(t, err)
}

func TestStateCookie_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := readStateCookie(req, testCookieSecret)
	require.Error(t, err)
}
