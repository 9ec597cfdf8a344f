// Package linking drives the two-stage OAuth flow that ties a Discord user
// to their GitHub account, and recomputes the linked-role metadata from the
// stored credential pair.
package linking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/approvers/sponsor-linked-role/internal/providers/discord"
	"github.com/approvers/sponsor-linked-role/internal/providers/github"
	"github.com/approvers/sponsor-linked-role/internal/store"
)

// StateTTL bounds the gap between the Discord and GitHub stages. A user who
// takes longer must restart the flow.
const StateTTL = 5 * time.Minute

var (
	// ErrInvalidState is returned when the state-token bridge is missing or
	// expired at the GitHub stage.
	ErrInvalidState = errors.New("invalid or expired link session")

	// ErrMissingCredential is returned when metadata recomputation is
	// attempted for a user who never completed linking.
	ErrMissingCredential = errors.New("missing stored credential")
)

// DiscordClient is the slice of the Discord API the flow needs.
type DiscordClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	FetchUser(ctx context.Context, accessToken string) (*discord.User, error)
	PushMetadata(ctx context.Context, accessToken string, metadata discord.Metadata) error
}

// GitHubClient is the slice of the GitHub API the flow needs.
type GitHubClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
	FetchSponsoring(ctx context.Context, accessToken string) ([]github.Account, error)
}

// DiscordCredential is the stored Discord token set. ExpiresAt is an
// absolute instant so reads never need the issuance time.
type DiscordCredential struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Service is the linking state machine. It holds no per-flow state in
// memory; everything lives in the credential store, so requests may land on
// different instances.
type Service struct {
	store        store.Store
	discord      DiscordClient
	github       GitHubClient
	sponsorLogin string
}

// NewService creates the linking service.
func NewService(st store.Store, dc DiscordClient, gh GitHubClient, sponsorLogin string) *Service {
	return &Service{
		store:        st,
		discord:      dc,
		github:       gh,
		sponsorLogin: sponsorLogin,
	}
}

// NewState generates the anti-forgery state token for one linking attempt.
// The same token flows through both OAuth stages as the state parameter.
func (s *Service) NewState() string {
	return uuid.NewString()
}

// DiscordAuthURL builds the Discord authorization redirect target.
func (s *Service) DiscordAuthURL(state string) string {
	return s.discord.AuthCodeURL(state)
}

// CompleteDiscord finishes the Discord stage: exchanges the code, stores
// the token set keyed by the authenticated user's id, records the
// state -> user id bridge for the GitHub stage, and returns the GitHub
// authorization URL built with the same state token.
func (s *Service) CompleteDiscord(ctx context.Context, code, state string) (string, error) {
	token, err := s.discord.Exchange(ctx, code)
	if err != nil {
		return "", err
	}

	user, err := s.discord.FetchUser(ctx, token.AccessToken)
	if err != nil {
		return "", err
	}

	if err := s.putDiscordCredential(ctx, user.ID, token); err != nil {
		return "", err
	}

	// Bridge for the GitHub callback, which has no other session context.
	if err := s.store.Put(ctx, stateKey(state), user.ID, StateTTL); err != nil {
		return "", fmt.Errorf("failed to store link session: %w", err)
	}

	return s.github.AuthCodeURL(state), nil
}

// CompleteGitHub finishes the GitHub stage: exchanges the code, recovers
// the Discord user id from the state bridge, stores the GitHub token under
// that id, and recomputes the metadata synchronously.
func (s *Service) CompleteGitHub(ctx context.Context, code, state string) error {
	accessToken, err := s.github.Exchange(ctx, code)
	if err != nil {
		return err
	}

	userID, err := s.store.Get(ctx, stateKey(state))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidState
		}
		return fmt.Errorf("failed to read link session: %w", err)
	}

	// The state token is single-use: consume the bridge so a replayed
	// callback within the TTL is rejected.
	if err := s.store.Delete(ctx, stateKey(state)); err != nil {
		return fmt.Errorf("failed to consume link session: %w", err)
	}

	if err := s.store.Put(ctx, githubKey(userID), accessToken, 0); err != nil {
		return fmt.Errorf("failed to store github credential: %w", err)
	}

	return s.UpdateMetadata(ctx, userID)
}

// UpdateMetadata recomputes the role-connection metadata for a linked user:
// reads both stored credentials, refreshes the Discord token if its expiry
// has passed, derives is_sponsoring from the live sponsorship list and
// pushes the result to Discord.
func (s *Service) UpdateMetadata(ctx context.Context, discordUserID string) error {
	cred, err := s.getDiscordCredential(ctx, discordUserID)
	if err != nil {
		return err
	}

	githubToken, err := s.store.Get(ctx, githubKey(discordUserID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMissingCredential
		}
		return fmt.Errorf("failed to read github credential: %w", err)
	}

	if time.Now().After(cred.ExpiresAt) {
		refreshed, err := s.discord.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			return err
		}
		if err := s.putDiscordCredential(ctx, discordUserID, refreshed); err != nil {
			return err
		}
		cred.AccessToken = refreshed.AccessToken
	}

	sponsoring, err := s.github.FetchSponsoring(ctx, githubToken)
	if err != nil {
		return err
	}

	isSponsoring := 0
	for _, account := range sponsoring {
		if account.Login == s.sponsorLogin {
			isSponsoring = 1
			break
		}
	}

	return s.discord.PushMetadata(ctx, cred.AccessToken, discord.Metadata{IsSponsoring: isSponsoring})
}

func (s *Service) putDiscordCredential(ctx context.Context, userID string, token *oauth2.Token) error {
	cred := DiscordCredential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}

	value, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal discord credential: %w", err)
	}

	if err := s.store.Put(ctx, discordKey(userID), string(value), 0); err != nil {
		return fmt.Errorf("failed to store discord credential: %w", err)
	}
	return nil
}

func (s *Service) getDiscordCredential(ctx context.Context, userID string) (*DiscordCredential, error) {
	value, err := s.store.Get(ctx, discordKey(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMissingCredential
		}
		return nil, fmt.Errorf("failed to read discord credential: %w", err)
	}

	var cred DiscordCredential
	if err := json.Unmarshal([]byte(value), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal discord credential: %w", err)
	}
	return &cred, nil
}

func discordKey(userID string) string { return "discord:" + userID }
func githubKey(userID string) string  { return "github:" + userID }
func stateKey(token string) string    { return "state:" + token }
