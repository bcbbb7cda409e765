// handlers/web/auth.go
package web

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/google/uuid"

	"replydeck/config"
	"replydeck/handlers/api"
	"replydeck/middleware"
	"replydeck/utils"
)

type AuthHandler struct {
	store  *session.Store
	config *config.Config
	views  *api.ViewStore
}

// NewAuthHandler creates a new instance of AuthHandler
func NewAuthHandler(store *session.Store, config *config.Config, views *api.ViewStore) *AuthHandler {
	return &AuthHandler{
		store:  store,
		config: config,
		views:  views,
	}
}

// ShowLogin renders the login page
func (h *AuthHandler) ShowLogin(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err == nil {
		authenticated := sess.Get("authenticated")
		if authenticated == true {
			return c.Redirect("/inbox")
		}
	}

	return c.Render("login", fiber.Map{
		"Configured": h.config.Configured(),
		"Error":      loginError(c.Query("error")),
		"CSRFToken":  middleware.GenerateCSRFToken(c),
	})
}

// loginError maps a callback error code to a message fit for the page.
func loginError(code string) string {
	switch code {
	case "":
		return ""
	case "access_denied":
		return "Sign-in was cancelled"
	case "state_mismatch":
		return "Sign-in session expired, please try again"
	default:
		return "Sign-in failed, please try again"
	}
}

// HandleLogin starts the provider consent flow.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	if !h.config.Configured() {
		return c.Status(503).Render("login", fiber.Map{
			"Configured": false,
			"CSRFToken":  middleware.GenerateCSRFToken(c),
		})
	}

	sess, err := h.store.Get(c)
	if err != nil {
		return c.Status(500).SendString("Session error")
	}

	state := uuid.New().String()
	sess.Set("oauth_state", state)
	if err := sess.Save(); err != nil {
		return c.Status(500).SendString("Session error")
	}

	return c.Redirect(h.config.AuthCodeURL(state))
}

// HandleCallback finishes the consent flow: verifies the state, redeems
// the code for tokens, resolves the identity, and signs the session in.
func (h *AuthHandler) HandleCallback(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Redirect("/login")
	}

	if errParam := c.Query("error"); errParam != "" {
		utils.Log.Warn("Consent flow denied: %s", errParam)
		return c.Redirect("/login?error=" + url.QueryEscape(errParam))
	}

	expected, _ := sess.Get("oauth_state").(string)
	sess.Delete("oauth_state")

	if expected == "" || c.Query("state") != expected {
		utils.Log.Warn("Rejecting callback with bad state")
		return c.Redirect("/login?error=state_mismatch")
	}

	code := c.Query("code")
	if code == "" {
		return c.Redirect("/login?error=missing_code")
	}

	tokens, err := api.ExchangeCode(c.Context(), h.config, code)
	if err != nil {
		utils.Log.Error("Code exchange failed: %v", err)
		return c.Redirect("/login?error=exchange_failed")
	}

	profile, err := api.FetchProfile(c.Context(), h.config, tokens.AccessToken)
	if err != nil {
		utils.Log.Error("Profile fetch failed: %v", err)
		return c.Redirect("/login?error=profile_failed")
	}

	token, err := api.GenerateToken(profile.Email, profile.Name, h.config.Session.Secret, h.config.SessionExpiry())
	if err != nil {
		utils.Log.Error("Failed to create session token: %v", err)
		return c.Redirect("/login?error=session_failed")
	}

	sealed, err := api.SealTokens(tokens, h.config.Session.Secret)
	if err != nil {
		utils.Log.Error("Failed to seal credentials: %v", err)
		return c.Redirect("/login?error=session_failed")
	}

	sess.Set("authenticated", true)
	sess.Set("email", profile.Email)
	sess.Set("name", profile.Name)
	sess.Set("token", token)
	sess.Set("credentials", sealed)
	sess.SetExpiry(h.config.SessionExpiry())

	if err := sess.Save(); err != nil {
		utils.Log.Error("Failed to save session: %v", err)
		return c.Redirect("/login?error=session_failed")
	}

	utils.Log.Info("Signed in %s", profile.Email)
	return c.Redirect("/inbox")
}

// HandleLogout processes user logout
func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err != nil {
		return c.Redirect("/login")
	}

	h.views.Drop(sess.ID())

	if err := sess.Destroy(); err != nil {
		return c.Status(500).SendString("Error during logout")
	}

	return c.Redirect("/login")
}
