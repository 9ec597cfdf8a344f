package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration
type Config struct {
	Port        int
	Environment string
	AppURL      string
	Store       StoreConfig
	Discord     ProviderConfig
	GitHub      ProviderConfig
	// DiscordBotToken authenticates the one-time metadata schema registration.
	DiscordBotToken string
	// CookieSignSecret signs the anti-forgery state cookie.
	CookieSignSecret string
	// SponsorLogin is the GitHub login whose sponsors get the linked role.
	SponsorLogin string
}

// ProviderConfig holds an OAuth2 client id/secret pair
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// StoreConfig holds credential store configuration
type StoreConfig struct {
	Type         string // postgres, embedded or valkey
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	BuntPath     string
	ValkeyAddr   string
	ValkeyPrefix string
}

// Load loads configuration from environment variables
func Load() *Config {
	env := getEnv("ENVIRONMENT", "production")

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: env,
		AppURL:      getAppURL(),
		Store: StoreConfig{
			Type:         getEnv("STORE_TYPE", "postgres"),
			DSN:          getEnv("DATABASE_DSN", buildPostgresDSN()),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			BuntPath:     getEnv("BUNTDB_PATH", "credentials.db"),
			ValkeyAddr:   getEnv("VALKEY_ADDR", "127.0.0.1:6379"),
			ValkeyPrefix: getEnv("VALKEY_KEY_PREFIX", "linkedrole:"),
		},
		Discord: ProviderConfig{
			ClientID:     os.Getenv("DISCORD_CLIENT_ID"),
			ClientSecret: os.Getenv("DISCORD_CLIENT_SECRET"),
		},
		GitHub: ProviderConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		},
		DiscordBotToken:  os.Getenv("DISCORD_BOT_TOKEN"),
		CookieSignSecret: loadCookieSecret(env),
		SponsorLogin:     getEnv("SPONSOR_LOGIN", "approvers"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	return cfg
}

func buildPostgresDSN() string {
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	user := getEnv("POSTGRES_USER", "linkedrole")
	password := getEnv("POSTGRES_PASSWORD", "secret")
	dbName := getEnv("POSTGRES_DB", "linkedrole")
	sslMode := getEnv("POSTGRES_SSLMODE", "disable")

	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(user, password),
		Host:   fmt.Sprintf("%s:%s", host, port),
		Path:   dbName,
	}

	query := u.Query()
	query.Set("sslmode", sslMode)
	u.RawQuery = query.Encode()

	return u.String()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AppURL == "" {
		if c.Environment == "production" {
			return fmt.Errorf("APP_URL is required in production (redirect URIs are derived from it)")
		}
		log.Println("WARNING: APP_URL not set. Using http://localhost:8080 for redirect URIs.")
		c.AppURL = "http://localhost:8080"
	}

	if c.Discord.ClientID == "" || c.Discord.ClientSecret == "" {
		return fmt.Errorf("DISCORD_CLIENT_ID and DISCORD_CLIENT_SECRET are required")
	}
	if c.GitHub.ClientID == "" || c.GitHub.ClientSecret == "" {
		return fmt.Errorf("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET are required")
	}

	if c.Environment == "production" {
		if len(c.CookieSignSecret) < 32 {
			return fmt.Errorf("COOKIE_SIGN_SECRET must be at least 32 characters in production")
		}

		// Check for insecure default secrets
		insecureSecrets := []string{
			"change-this-secret-in-production",
			"change-me-in-production",
			"secret",
			"password",
			"changeme",
		}
		for _, insecure := range insecureSecrets {
			if c.CookieSignSecret == insecure {
				return fmt.Errorf("COOKIE_SIGN_SECRET is set to an insecure default value. Please set a strong random secret")
			}
		}
	}

	switch c.Store.Type {
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the postgres store")
		}
	case "embedded":
		if c.Store.BuntPath == "" {
			return fmt.Errorf("BUNTDB_PATH is required for the embedded store")
		}
	case "valkey":
		if c.Store.ValkeyAddr == "" {
			return fmt.Errorf("VALKEY_ADDR is required for the valkey store")
		}
	default:
		return fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}

	if c.SponsorLogin == "" {
		return fmt.Errorf("SPONSOR_LOGIN must not be empty")
	}

	return nil
}

// DiscordRedirectURI is the fixed redirect URI for the Discord OAuth stage
func (c *Config) DiscordRedirectURI() string {
	return c.AppURL + "/discord-oauth-callback"
}

// GitHubRedirectURI is the fixed redirect URI for the GitHub OAuth stage
func (c *Config) GitHubRedirectURI() string {
	return c.AppURL + "/github-oauth-callback"
}

func loadCookieSecret(env string) string {
	secret := os.Getenv("COOKIE_SIGN_SECRET")

	// If COOKIE_SIGN_SECRET is not set, generate a random one for development
	if secret == "" {
		if env == "production" {
			log.Fatal("FATAL: COOKIE_SIGN_SECRET environment variable is required in production")
		}

		log.Println("WARNING: COOKIE_SIGN_SECRET not set. Generating random secret for development.")
		log.Println("WARNING: This secret will change on restart and invalidate in-flight link attempts.")
		return generateRandomSecret()
	}

	if len(secret) < 16 {
		log.Fatal("FATAL: COOKIE_SIGN_SECRET must be at least 16 characters long")
	}

	return secret
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func generateRandomSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Fatal("Failed to generate random secret:", err)
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

func getAppURL() string {
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		return ""
	}
	return strings.TrimRight(appURL, "/")
}
