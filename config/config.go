package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port    int    `toml:"port"`
	BaseURL string `toml:"base_url"` // Canonical public URL, e.g. https://mail.example.com
}

type OAuthConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	AuthURL      string   `toml:"auth_url"`
	TokenURL     string   `toml:"token_url"`
	UserinfoURL  string   `toml:"userinfo_url"`
	Scopes       []string `toml:"scopes"`
}

type ProviderConfig struct {
	APIBase   string `toml:"api_base"`
	UserID    string `toml:"user_id"`    // Mailbox user id on the provider, "me" for the token owner
	MaxUnread int    `toml:"max_unread"` // Cap on unread messages shown per fetch
}

type SessionConfig struct {
	Secret      string `toml:"secret"` // For signing session tokens and sealing provider credentials
	Folder      string `toml:"folder"`
	ExpiryHours int    `toml:"expiry_hours"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `toml:"requests_per_minute"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	OAuth     OAuthConfig     `toml:"oauth"`
	Provider  ProviderConfig  `toml:"provider"`
	Session   SessionConfig   `toml:"session"`
	RateLimit RateLimitConfig `toml:"ratelimit"`
}

func LoadConfig(filepath string) (*Config, error) {
	config := defaultConfig()

	// A missing config file is not fatal; the app runs in its
	// "not configured" state until secrets arrive via file or env.
	if _, err := toml.DecodeFile(filepath, config); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(config)

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
		},
		OAuth: OAuthConfig{
			AuthURL:     "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:    "https://oauth2.googleapis.com/token",
			UserinfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes: []string{
				"openid",
				"email",
				"profile",
				"https://www.googleapis.com/auth/gmail.modify",
			},
		},
		Provider: ProviderConfig{
			APIBase:   "https://gmail.googleapis.com/gmail/v1",
			UserID:    "me",
			MaxUnread: 15,
		},
		Session: SessionConfig{
			Folder:      "./sessions",
			ExpiryHours: 24,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 100,
		},
	}
}

// applyEnv overlays environment variables onto the loaded config.
// Env values win so deployments can keep secrets out of the file.
func applyEnv(config *Config) {
	if v := os.Getenv("REPLYDECK_OAUTH_CLIENT_ID"); v != "" {
		config.OAuth.ClientID = v
	}
	if v := os.Getenv("REPLYDECK_OAUTH_CLIENT_SECRET"); v != "" {
		config.OAuth.ClientSecret = v
	}
	if v := os.Getenv("REPLYDECK_SESSION_SECRET"); v != "" {
		config.Session.Secret = v
	}
	if v := os.Getenv("REPLYDECK_BASE_URL"); v != "" {
		config.Server.BaseURL = v
	}
}

// Configured reports whether every externally supplied secret and the
// canonical base URL are present. When false the app serves a
// "not configured" notice instead of failing requests at depth.
func (c *Config) Configured() bool {
	return c.OAuth.ClientID != "" &&
		c.OAuth.ClientSecret != "" &&
		c.Session.Secret != "" &&
		c.Server.BaseURL != ""
}

// SessionExpiry returns the configured session lifetime.
func (c *Config) SessionExpiry() time.Duration {
	hours := c.Session.ExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// RedirectURL is the OAuth callback registered with the provider.
func (c *Config) RedirectURL() string {
	return strings.TrimSuffix(c.Server.BaseURL, "/") + "/auth/callback"
}

// AuthCodeURL builds the provider consent URL for the authorization-code
// flow. The state value is verified on callback.
func (c *Config) AuthCodeURL(state string) string {
	v := url.Values{
		"client_id":     {c.OAuth.ClientID},
		"redirect_uri":  {c.RedirectURL()},
		"response_type": {"code"},
		"scope":         {strings.Join(c.OAuth.Scopes, " ")},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
		"state":         {state},
	}
	return c.OAuth.AuthURL + "?" + v.Encode()
}
