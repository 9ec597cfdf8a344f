package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/approvers/sponsor-linked-role/internal/config"
	"github.com/approvers/sponsor-linked-role/internal/linking"
	"github.com/approvers/sponsor-linked-role/internal/providers"
	"github.com/approvers/sponsor-linked-role/internal/providers/discord"
)

// HandleLinkedRole initiates the linking flow: issues a fresh state token,
// signs it into the state cookie and redirects to Discord's consent screen.
func HandleLinkedRole(cfg *config.Config, svc *linking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := svc.NewState()

		if err := setStateCookie(w, cfg.CookieSignSecret, state); err != nil {
			log.Println("Linking: Failed to set state cookie:", err)
			http.Error(w, "Failed to initiate linking", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, svc.DiscordAuthURL(state), http.StatusFound)
	}
}

// HandleDiscordCallback completes the Discord stage and redirects into the
// GitHub authorization flow, reusing the same state token.
func HandleDiscordCallback(cfg *config.Config, svc *linking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")

		if state == "" || code == "" {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		cookieState, err := readStateCookie(r, cfg.CookieSignSecret)
		if err != nil || cookieState != state {
			log.Println("Linking: Discord callback state verification failed")
			http.Error(w, "State verification failed", http.StatusForbidden)
			return
		}

		githubURL, err := svc.CompleteDiscord(r.Context(), code, state)
		if err != nil {
			respondLinkingError(w, "Discord", err)
			return
		}

		http.Redirect(w, r, githubURL, http.StatusFound)
	}
}

// HandleGitHubCallback completes the GitHub stage and recomputes the
// linked-role metadata synchronously.
func HandleGitHubCallback(cfg *config.Config, svc *linking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")

		if state == "" || code == "" {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		cookieState, err := readStateCookie(r, cfg.CookieSignSecret)
		if err != nil || cookieState != state {
			log.Println("Linking: GitHub callback state verification failed")
			http.Error(w, "State verification failed", http.StatusForbidden)
			return
		}

		if err := svc.CompleteGitHub(r.Context(), code, state); err != nil {
			respondLinkingError(w, "GitHub", err)
			return
		}

		w.Write([]byte("All Done!"))
	}
}

// HandleUpdateMetadata re-runs metadata recomputation for a user without
// redoing OAuth. The caller is trusted; the user id comes from the form
// body, not from the linking flow.
func HandleUpdateMetadata(svc *linking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		userID := r.PostFormValue("user_id")
		if userID == "" {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		if err := svc.UpdateMetadata(r.Context(), userID); err != nil {
			respondLinkingError(w, "Recompute", err)
			return
		}

		w.Write([]byte("Updated!"))
	}
}

// HandleRegister registers the is_sponsoring metadata schema with Discord.
// One-time setup call, idempotent.
func HandleRegister(client *discord.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := client.RegisterMetadataSchema(r.Context()); err != nil {
			respondLinkingError(w, "Register", err)
			return
		}

		w.Write([]byte("Registor Done!"))
	}
}

// HandleRoot serves a plain banner so probes get something friendly.
func HandleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("sponsor-linked-role"))
	}
}

// respondLinkingError maps flow errors onto plain status + text responses.
// Every error is terminal for the request; the user restarts from
// /linked-role.
func respondLinkingError(w http.ResponseWriter, stage string, err error) {
	var upstream *providers.UpstreamError

	switch {
	case errors.Is(err, linking.ErrInvalidState):
		log.Printf("Linking: %s: link session expired", stage)
		http.Error(w, "Invalid or expired link session", http.StatusBadRequest)
	case errors.Is(err, linking.ErrMissingCredential):
		log.Printf("Linking: %s: linking never completed", stage)
		http.Error(w, "Linking not completed", http.StatusNotFound)
	case errors.As(err, &upstream):
		log.Printf("Linking: %s: %v", stage, err)
		http.Error(w, "Upstream request failed", http.StatusBadGateway)
	default:
		log.Printf("Linking: %s: %v", stage, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
