package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfApp(cfg ...CSRFConfig) *fiber.App {
	app := fiber.New()
	app.Use(CSRFProtection(cfg...))
	app.All("/resource", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestCSRFProtectionAllowsSafeMethods(t *testing.T) {
	app := csrfApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/resource", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestCSRFProtectionRejectsMissingToken(t *testing.T) {
	app := csrfApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/resource", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestCSRFProtectionRejectsMismatchedToken(t *testing.T) {
	app := csrfApp()

	req := httptest.NewRequest(http.MethodPost, "/resource", nil)
	req.Header.Set("Cookie", "csrf_token=aaa")
	req.Header.Set("X-CSRF-Token", "bbb")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestCSRFProtectionAcceptsMatchingToken(t *testing.T) {
	app := csrfApp()

	req := httptest.NewRequest(http.MethodPost, "/resource", nil)
	req.Header.Set("Cookie", "csrf_token=match-1")
	req.Header.Set("X-CSRF-Token", "match-1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestCSRFProtectionSkipper(t *testing.T) {
	cfg := DefaultCSRFConfig()
	cfg.Skipper = func(c *fiber.Ctx) bool {
		return c.Path() == "/resource"
	}
	app := csrfApp(cfg)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/resource", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestGenerateCSRFToken(t *testing.T) {
	app := fiber.New()
	app.Get("/page", func(c *fiber.Ctx) error {
		token := GenerateCSRFToken(c)
		require.NotEmpty(t, token)
		assert.Equal(t, token, c.Locals("csrf"))
		return c.SendString(token)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/page", nil), -1)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "csrf_token=")
}
