package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/approvers/sponsor-linked-role/internal/providers"
)

const (
	defaultAPIBaseURL = "https://discord.com/api/v10"
	defaultAuthURL    = "https://discord.com/api/oauth2/authorize"
)

// Scopes requested during the Discord OAuth stage. role_connections.write
// lets the service push linked-role metadata for the user.
var scopes = []string{"role_connections.write", "identify"}

// User holds the authenticated Discord user, fetched from /users/@me.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Metadata is the role-connection value pushed back to Discord.
// is_sponsoring uses Discord metadata type 7 (boolean equal), so the value
// is 0 or 1 rather than a bool.
type Metadata struct {
	IsSponsoring int `json:"is_sponsoring"`
}

// Config holds Discord client configuration.
type Config struct {
	// ClientID is the Discord application client ID.
	ClientID string

	// ClientSecret is the Discord application client secret.
	ClientSecret string

	// RedirectURL is the OAuth callback URL for the Discord stage.
	RedirectURL string

	// BotToken authenticates the metadata schema registration call.
	BotToken string

	// APIBaseURL overrides the REST/token base URL (tests).
	APIBaseURL string

	// AuthURL overrides the authorization endpoint (tests).
	AuthURL string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// Client talks to Discord's OAuth2 and role-connection APIs.
type Client struct {
	oauth      *oauth2.Config
	botToken   string
	apiBaseURL string
	httpClient *http.Client
}

// NewClient creates a new Discord client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  apiBaseURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		botToken:   cfg.BotToken,
		apiBaseURL: apiBaseURL,
		httpClient: httpClient,
	}, nil
}

// ClientID returns the configured application client ID.
func (c *Client) ClientID() string {
	return c.oauth.ClientID
}

// AuthCodeURL builds the authorization URL for the given anti-forgery state.
// prompt=consent forces the consent screen so a refresh token is reissued
// on every link attempt.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange swaps an authorization code for a token set. The returned
// token's Expiry is the absolute instant now + expires_in.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, providers.WrapRetrieveError(err)
	}
	return token, nil
}

// Refresh exchanges a refresh token for a fresh token set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := c.oauth.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, providers.WrapRetrieveError(err)
	}
	return token, nil
}

// FetchUser returns the user the access token belongs to.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := providers.CheckResponse(resp); err != nil {
		return nil, err
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("user response missing id")
	}

	return &user, nil
}

// PushMetadata writes the user's role-connection metadata.
func (c *Client) PushMetadata(ctx context.Context, accessToken string, metadata Metadata) error {
	body := struct {
		PlatformName string   `json:"platform_name"`
		Metadata     Metadata `json:"metadata"`
	}{
		PlatformName: "GitHub Sponsor",
		Metadata:     metadata,
	}

	url := fmt.Sprintf("%s/users/@me/applications/%s/role-connection", c.apiBaseURL, c.oauth.ClientID)
	return c.put(ctx, url, "Bearer "+accessToken, body)
}

// RegisterMetadataSchema declares the is_sponsoring metadata field on the
// application. Idempotent; run once as setup, authenticated with the bot
// token rather than a user token.
func (c *Client) RegisterMetadataSchema(ctx context.Context) error {
	if c.botToken == "" {
		return fmt.Errorf("bot token is required to register metadata")
	}

	schema := []map[string]any{
		{
			"key":         "is_sponsoring",
			"name":        "Sponsoring me",
			"description": "Is sponsoring me on GitHub",
			"type":        7,
		},
	}

	url := fmt.Sprintf("%s/applications/%s/role-connections/metadata", c.apiBaseURL, c.oauth.ClientID)
	return c.put(ctx, url, "Bot "+c.botToken, schema)
}

func (c *Client) put(ctx context.Context, url, authorization string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return providers.CheckResponse(resp)
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
