package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/approvers/sponsor-linked-role/internal/providers"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "https://example.com/discord-oauth-callback",
		BotToken:     "test-bot-token",
		APIBaseURL:   srv.URL,
		AuthURL:      srv.URL + "/oauth2/authorize",
	})
	require.NoError(t, err)

	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(&Config{ClientSecret: "s"})
	require.Error(t, err)

	_, err = NewClient(&Config{ClientID: "c"})
	require.Error(t, err)
}

func TestAuthCodeURL(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	raw := client.AuthCodeURL("state-token")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	require.Equal(t, "test-client-id", q.Get("client_id"))
	require.Equal(t, "https://example.com/discord-oauth-callback", q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "state-token", q.Get("state"))
	require.Equal(t, "role_connections.write identify", q.Get("scope"))
	require.Equal(t, "consent", q.Get("prompt"))
}

func TestExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.FormValue("grant_type"))
		require.Equal(t, "test-code", r.FormValue("code"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    604800,
		})
	})

	client := newTestClient(t, mux)

	before := time.Now()
	token, err := client.Exchange(context.Background(), "test-code")
	require.NoError(t, err)

	require.Equal(t, "access-1", token.AccessToken)
	require.Equal(t, "refresh-1", token.RefreshToken)

	// Expiry is the absolute instant request-time + expires_in
	require.WithinDuration(t, before.Add(604800*time.Second), token.Expiry, 5*time.Second)
}

func TestExchange_UpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	})

	client := newTestClient(t, mux)

	_, err := client.Exchange(context.Background(), "bad-code")
	require.Error(t, err)

	var upstream *providers.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusBadRequest, upstream.Status)
}

func TestRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.FormValue("grant_type"))
		require.Equal(t, "refresh-1", r.FormValue("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
			"token_type":    "Bearer",
			"expires_in":    604800,
		})
	})

	client := newTestClient(t, mux)

	token, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", token.AccessToken)
	require.Equal(t, "refresh-2", token.RefreshToken)
}

func TestFetchUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "111", "username": "alice"})
	})

	client := newTestClient(t, mux)

	user, err := client.FetchUser(context.Background(), "access-1")
	require.NoError(t, err)
	require.Equal(t, "111", user.ID)
	require.Equal(t, "alice", user.Username)
}

func TestFetchUser_UpstreamError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	client := newTestClient(t, mux)

	_, err := client.FetchUser(context.Background(), "expired-token")

	var upstream *providers.UpstreamError
	require.ErrorAs(t, err, &upstream)
	require.Equal(t, http.StatusUnauthorized, upstream.Status)
	require.Equal(t, "Unauthorized", upstream.StatusText)
}

func TestPushMetadata(t *testing.T) {
	var body map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me/applications/test-client-id/role-connection", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t, mux)

	err := client.PushMetadata(context.Background(), "access-1", Metadata{IsSponsoring: 1})
	require.NoError(t, err)

	require.Equal(t, "GitHub Sponsor", body["platform_name"])
	require.Equal(t, map[string]any{"is_sponsoring": float64(1)}, body["metadata"])
}

func TestRegisterMetadataSchema(t *testing.T) {
	var schema []map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("/applications/test-client-id/role-connections/metadata", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "Bot test-bot-token", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &schema))

		fmt.Fprint(w, "[]")
	})

	client := newTestClient(t, mux)

	require.NoError(t, client.RegisterMetadataSchema(context.Background()))

	require.Len(t, schema, 1)
	require.Equal(t, "is_sponsoring", schema[0]["key"])
	require.Equal(t, float64(7), schema[0]["type"])
}
