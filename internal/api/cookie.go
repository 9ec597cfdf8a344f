package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/approvers/sponsor-linked-role/internal/linking"
)

const stateCookieName = "state"

// setStateCookie stores the anti-forgery state token in a signed cookie.
// The cookie is issued once at flow start and validated on both callbacks;
// it is never reissued in between.
func setStateCookie(w http.ResponseWriter, secret, state string) error {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"state": state,
		"exp":   time.Now().Add(linking.StateTTL).Unix(),
	})

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return fmt.Errorf("failed to sign state cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(linking.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// readStateCookie returns the state token carried by the signed cookie, or
// an error if the cookie is missing, tampered with or expired.
func readStateCookie(r *http.Request, secret string) (string, error) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return "", fmt.Errorf("state cookie missing: %w", err)
	}

	token, err := jwt.Parse(cookie.Value, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid state cookie")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid state cookie claims")
	}
	state, ok := claims["state"].(string)
	if !ok || state == "" {
		return "", fmt.Errorf("state cookie missing state claim")
	}

	return state, nil
}
