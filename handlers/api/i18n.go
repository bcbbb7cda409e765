package api

import (
	"github.com/gofiber/fiber/v2"

	"replydeck/utils"
)

// I18nHandler handles i18n-related requests
type I18nHandler struct{}

// GetTranslations returns translations for the client-side JavaScript
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if lang == "" {
		lang = "en"
	}

	// Only allow supported languages
	if lang != "en" && lang != "ja" {
		lang = "en"
	}

	localizer := utils.GetLocalizer(lang)

	// Create a map of common translation keys for client-side use
	translations := map[string]string{
		"reply_sent_success":    utils.T(localizer, "reply_sent_success"),
		"reply_all_done":        utils.T(localizer, "reply_all_done"),
		"reply_failed":          utils.T(localizer, "reply_failed"),
		"message_error":         utils.T(localizer, "message_error"),
		"connection_error":      utils.T(localizer, "connection_error"),
		"inbox_loading":         utils.T(localizer, "inbox_loading"),
		"inbox_empty":           utils.T(localizer, "inbox_empty"),
		"confirm_reply_all":     utils.T(localizer, "confirm_reply_all"),
		"confirm_yes":           utils.T(localizer, "confirm_yes"),
		"confirm_no":            utils.T(localizer, "confirm_no"),
		"template_acknowledge":  utils.T(localizer, "template_acknowledge"),
		"template_schedule":     utils.T(localizer, "template_schedule"),
		"template_follow_up":    utils.T(localizer, "template_follow_up"),
		"smart_draft":           utils.T(localizer, "smart_draft"),
		"error_404":             utils.T(localizer, "error_404"),
		"error_500":             utils.T(localizer, "error_500"),
	}

	return c.JSON(translations)
}
