package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replydeck/utils"
)

func TestLocaleMiddleware(t *testing.T) {
	require.NoError(t, utils.InitI18n())

	app := fiber.New()
	app.Use(LocaleMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		_, ok := c.Locals("localizer").(*i18n.Localizer)
		require.True(t, ok, "localizer must be set for every request")
		return c.SendString(c.Locals("lang").(string))
	})

	tests := []struct {
		name   string
		target string
		setup  func(*http.Request)
		want   string
	}{
		{"defaults to english", "/", nil, "en"},
		{"query parameter wins", "/?lang=ja", nil, "ja"},
		{"cookie", "/", func(r *http.Request) { r.Header.Set("Cookie", "lang=ja") }, "ja"},
		{"accept-language header", "/", func(r *http.Request) { r.Header.Set("Accept-Language", "ja-JP,ja;q=0.9") }, "ja"},
		{"unsupported language falls back", "/?lang=fr", nil, "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.setup != nil {
				tt.setup(req)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}
