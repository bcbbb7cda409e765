package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"replydeck/config"
	"replydeck/utils"
)

// wantsJSON reports whether the caller expects a JSON answer rather
// than a rendered page: HTMX requests and everything under /api.
func wantsJSON(c *fiber.Ctx) bool {
	if c.Get("HX-Request") != "" {
		return true
	}
	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

// SessionMiddleware guards routes that need a signed-in mailbox user.
// When the server has no provider credentials configured, gated routes
// degrade to 503 instead of failing deeper in the stack.
func SessionMiddleware(store *session.Store, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Configured() {
			return utils.ServiceUnavailableError("Mailbox access is not configured", nil)
		}

		sess, err := store.Get(c)
		if err != nil {
			return unauthenticated(c)
		}

		authenticated, ok := sess.Get("authenticated").(bool)
		if !ok || !authenticated {
			return unauthenticated(c)
		}

		token, ok := sess.Get("token").(string)
		if !ok || token == "" {
			return unauthenticated(c)
		}

		claims, err := ValidateToken(token, cfg.Session.Secret)
		if err != nil {
			utils.Log.Warn("Rejecting session with invalid token: %v", err)
			return unauthenticated(c)
		}

		c.Locals("email", claims.Email)
		c.Locals("name", claims.Name)
		c.Locals("sessionID", sess.ID())

		return c.Next()
	}
}

func unauthenticated(c *fiber.Ctx) error {
	if wantsJSON(c) {
		return utils.UnauthorizedError("Not signed in", nil)
	}
	return c.Redirect("/login")
}

// SessionID returns the session id the middleware resolved for this
// request. Empty outside guarded routes.
func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals("sessionID").(string)
	return id
}

// GetSessionToken reads the signed session token for the request.
func GetSessionToken(c *fiber.Ctx, store *session.Store) (string, error) {
	sess, err := store.Get(c)
	if err != nil {
		return "", err
	}
	token, ok := sess.Get("token").(string)
	if !ok || token == "" {
		return "", errors.New("no session token")
	}
	return token, nil
}

// AccessToken returns a live access token for the session, refreshing
// and resealing the stored pair when it has lapsed. Any failure to
// produce a token means the user has to sign in again.
func AccessToken(c *fiber.Ctx, store *session.Store, cfg *config.Config) (string, error) {
	sess, err := store.Get(c)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}

	sealed, ok := sess.Get("credentials").(string)
	if !ok || sealed == "" {
		return "", fmt.Errorf("no mailbox credentials in session: %w", ErrUnauthorized)
	}

	tokens, err := OpenTokens(sealed, cfg.Session.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to unseal mailbox credentials: %w", err)
	}

	if !tokens.Expired() {
		return tokens.AccessToken, nil
	}
	if tokens.RefreshToken == "" {
		return "", fmt.Errorf("access token expired without a refresh token: %w", ErrUnauthorized)
	}

	refreshed, err := RefreshTokens(c.Context(), cfg, tokens.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	resealed, err := SealTokens(refreshed, cfg.Session.Secret)
	if err != nil {
		utils.Log.Warn("Failed to reseal refreshed credentials: %v", err)
	} else {
		sess.Set("credentials", resealed)
		if err := sess.Save(); err != nil {
			utils.Log.Warn("Failed to persist refreshed credentials: %v", err)
		}
	}

	return refreshed.AccessToken, nil
}

// ProviderClient builds a mailbox client bound to the session's live
// access token.
func ProviderClient(c *fiber.Ctx, store *session.Store, cfg *config.Config) (*Client, error) {
	token, err := AccessToken(c, store, cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(token, cfg), nil
}
