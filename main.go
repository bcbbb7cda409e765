package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"replydeck/config"
	"replydeck/handlers/api"
	"replydeck/handlers/web"
	"replydeck/middleware"
	"replydeck/storage"
	"replydeck/utils"
)

var store *session.Store

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}

	// Check for HTMX request first
	if c.Get("HX-Request") != "" {
		return true
	}

	// Safely check if path starts with /api
	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

func main() {
	utils.Log.Info("Initializing ReplyDeck...")

	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
	}

	// Initialize i18n system
	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	// Session store, backed by bbolt so sign-ins survive a restart.
	// A storage failure falls back to fiber's in-memory store.
	sessionConfig := session.Config{
		Expiration:     cfg.SessionExpiry(),
		CookieSecure:   false, // Set to true in production with HTTPS
		CookieHTTPOnly: true,
	}
	sessionStorage, err := storage.NewSessionStorage(cfg.Session.Folder)
	if err != nil {
		utils.Log.Error("Failed to initialize session storage: %v", err)
	} else {
		sessionConfig.Storage = sessionStorage
	}
	store = session.New(sessionConfig)

	// Initialize template engine with custom functions
	engine := html.New("./templates", ".html")

	// String manipulation functions
	engine.AddFunc("split", strings.Split)
	engine.AddFunc("join", strings.Join)
	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("upper", strings.ToUpper)
	engine.AddFunc("trim", strings.TrimSpace)
	engine.AddFunc("hasPrefix", strings.HasPrefix)

	// dict builds a map from key/value pairs so partials can be invoked
	// with more than one argument
	engine.AddFunc("dict", func(values ...interface{}) map[string]interface{} {
		d := make(map[string]interface{}, len(values)/2)
		for i := 0; i+1 < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				continue
			}
			d[key] = values[i+1]
		}
		return d
	})

	// i18n template functions
	engine.AddFunc("t", func(messageID string) string {
		// This will be overridden per-request with the correct localizer
		return utils.T(utils.Localizer, messageID)
	})

	engine.AddFunc("tWithData", func(messageID string, data map[string]interface{}) string {
		return utils.TWithData(utils.Localizer, messageID, data)
	})

	engine.AddFunc("tPlural", func(messageID string, count int) string {
		return utils.TPlural(utils.Localizer, messageID, count)
	})

	// Date formatting function
	engine.AddFunc("formatDate", func(t time.Time) string {
		return t.Format("Jan 02, 2006 15:04")
	})

	engine.Reload(true)

	// Initialize Fiber with template engine
	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main", // Default layout
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError

			// Check for AppError
			if appErr, ok := err.(*utils.AppError); ok {
				code = appErr.Code
				utils.Log.Error("Application error: %v", appErr)
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			// Handle API requests differently
			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{
					"error": err.Error(),
				})
			}

			// Render error page for regular requests
			return c.Status(code).Render("error", fiber.Map{
				"Error": err.Error(),
				"Code":  code,
			})
		},
	})

	// Add global middleware
	app.Use(recover.New())  // Recover from panics
	app.Use(logger.New())   // Request logging
	app.Use(compress.New()) // Response compression
	app.Use(helmet.New(helmet.Config{ // Security headers
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline' https://unpkg.com; style-src 'self' 'unsafe-inline'; connect-src 'self'",
	}))

	// Add locale middleware
	app.Use(middleware.LocaleMiddleware())

	// Add rate limiting per IP
	app.Use(middleware.RateLimiter(cfg.RateLimit.RequestsPerMinute, time.Minute))

	// CSRF double-submit check for state-changing requests. The OAuth
	// endpoints are covered by the state parameter instead, and plain
	// form posts cannot set the header the check requires.
	csrfConfig := middleware.DefaultCSRFConfig()
	csrfConfig.Skipper = func(c *fiber.Ctx) bool {
		return c.Path() == "/login" || c.Path() == "/auth/callback"
	}
	app.Use(middleware.CSRFProtection(csrfConfig))

	// Serve static files
	app.Static("/assets", "./assets", fiber.Static{
		Compress:      true,
		CacheDuration: 24 * time.Hour,
	})

	// Shared state for the unread view
	views := api.NewViewStore(cfg.SessionExpiry())
	notify := api.NewNotificationHandler(store)

	// Initialize web handlers
	webAuthHandler := web.NewAuthHandler(store, cfg, views)
	webInboxHandler := web.NewInboxHandler(store, cfg, views, notify)

	// Initialize API handlers
	messagesHandler := api.NewMessagesHandler(store, cfg, views, notify)
	i18nHandler := &api.I18nHandler{}

	// Public routes
	app.Get("/login", webAuthHandler.ShowLogin)
	app.Post("/login", webAuthHandler.HandleLogin)
	app.Get("/auth/callback", webAuthHandler.HandleCallback)
	app.Get("/logout", webAuthHandler.HandleLogout)

	// Protected routes group
	protected := app.Group("", api.SessionMiddleware(store, cfg))

	// Main web routes
	protected.Get("/", webInboxHandler.HandleInbox)      // Default to inbox
	protected.Get("/inbox", webInboxHandler.HandleInbox) // Explicit inbox route

	// API routes
	apiRoutes := protected.Group("/api")
	{
		// Unread view routes
		apiRoutes.Get("/messages", messagesHandler.HandleList)
		apiRoutes.Post("/reply", messagesHandler.HandleReply)
		apiRoutes.Post("/messages/reply-all", messagesHandler.HandleReplyAll)

		// Draft routes
		apiRoutes.Put("/messages/:id/draft", messagesHandler.HandleDraftUpdate)
		apiRoutes.Post("/messages/:id/draft/template/:template", messagesHandler.HandleDraftTemplate)
		apiRoutes.Post("/messages/:id/draft/smart", messagesHandler.HandleDraftSmart)
		apiRoutes.Get("/templates", messagesHandler.HandleTemplates)

		// Notification routes
		apiRoutes.Get("/notifications/sse", notify.HandleSSE)
		apiRoutes.Use("/notifications/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		apiRoutes.Get("/notifications/ws", websocket.New(notify.HandleWebSocket))

		// i18n routes
		apiRoutes.Get("/i18n/:lang", i18nHandler.GetTranslations)
	}

	// HTMX routes (partial template renders)
	htmx := protected.Group("/htmx")
	{
		htmx.Get("/messages", webInboxHandler.HandleMessagesPartial)
		htmx.Post("/messages/:id/reply", webInboxHandler.HandleReplyPartial)
		htmx.Post("/messages/reply-all", webInboxHandler.HandleReplyAllPartial)
		htmx.Put("/messages/:id/draft", webInboxHandler.HandleDraftPartial)
		htmx.Post("/messages/:id/template/:template", webInboxHandler.HandleTemplatePartial)
		htmx.Post("/messages/:id/smart", webInboxHandler.HandleSmartPartial)
	}

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		localizer := c.Locals("localizer").(*i18n.Localizer)

		if isAPIRequest(c) {
			return c.Status(404).JSON(fiber.Map{
				"error": utils.T(localizer, "error_404"),
			})
		}
		return c.Status(404).Render("error", fiber.Map{
			"Error": utils.T(localizer, "error_404"),
			"Code":  404,
		})
	})

	// Start server
	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}
