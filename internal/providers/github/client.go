package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"

	"github.com/approvers/sponsor-linked-role/internal/providers"
)

const defaultGraphQLURL = "https://api.github.com/graphql"

// Scopes requested during the GitHub OAuth stage. read:org is needed to see
// sponsorships of organizations the viewer belongs to.
var scopes = []string{"read:user", "read:org"}

// Only the first 100 sponsorships are visible; there is no pagination here,
// so sponsors past that rank are treated as non-matches.
const sponsoringQuery = `
  query {
    viewer {
      sponsoring(first: 100) {
        nodes {
          ... on Organization {
            login
          }
          ... on User {
            login
          }
        }
      }
    }
  }
`

// Account is one sponsored user or organization.
type Account struct {
	Login string `json:"login"`
}

// Config holds GitHub client configuration.
type Config struct {
	// ClientID is the GitHub OAuth App client ID.
	ClientID string

	// ClientSecret is the GitHub OAuth App client secret.
	ClientSecret string

	// RedirectURL is the OAuth callback URL for the GitHub stage.
	RedirectURL string

	// UserAgent is sent with GraphQL calls; GitHub rejects requests without one.
	UserAgent string

	// GraphQLURL overrides the GraphQL endpoint (tests).
	GraphQLURL string

	// AuthURL and TokenURL override the OAuth endpoints (tests).
	AuthURL  string
	TokenURL string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// Client talks to GitHub's OAuth2 and GraphQL APIs.
type Client struct {
	oauth      *oauth2.Config
	graphqlURL string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a new GitHub client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	endpoint := oauthgithub.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	graphqlURL := cfg.GraphQLURL
	if graphqlURL == "" {
		graphqlURL = defaultGraphQLURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "sponsor-linked-role"
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
			Endpoint:     endpoint,
		},
		graphqlURL: graphqlURL,
		userAgent:  userAgent,
		httpClient: httpClient,
	}, nil
}

// AuthCodeURL builds the authorization URL for the given anti-forgery state.
// The state must be the exact token issued at the start of the Discord stage.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("allow_signup", "true"))
}

// Exchange swaps an authorization code for an access token. GitHub OAuth
// Apps issue non-expiring tokens with no refresh token in this flow.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	token, err := c.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), code)
	if err != nil {
		return "", providers.WrapRetrieveError(err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return token.AccessToken, nil
}

// FetchSponsoring lists accounts the token's viewer is sponsoring, capped
// at the first 100 results by the query above.
func (c *Client) FetchSponsoring(ctx context.Context, accessToken string) ([]Account, error) {
	payload, err := json.Marshal(map[string]string{"query": sponsoringQuery})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create graphql request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := providers.CheckResponse(resp); err != nil {
		return nil, err
	}

	var result struct {
		Data struct {
			Viewer struct {
				Sponsoring struct {
					Nodes []Account `json:"nodes"`
				} `json:"sponsoring"`
			} `json:"viewer"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode graphql response: %w", err)
	}

	return result.Data.Viewer.Sponsoring.Nodes, nil
}
