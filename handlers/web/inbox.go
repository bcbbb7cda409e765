// handlers/web/inbox.go
package web

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"replydeck/config"
	"replydeck/handlers/api"
	"replydeck/middleware"
	"replydeck/models"
	"replydeck/utils"
)

// InboxHandler renders the unread view and its HTMX fragments.
type InboxHandler struct {
	store  *session.Store
	config *config.Config
	views  *api.ViewStore
	notify *api.NotificationHandler
}

func NewInboxHandler(store *session.Store, config *config.Config, views *api.ViewStore, notify *api.NotificationHandler) *InboxHandler {
	return &InboxHandler{
		store:  store,
		config: config,
		views:  views,
		notify: notify,
	}
}

// messageView pairs a message with its current draft for rendering.
type messageView struct {
	models.Message
	Draft string
}

func (h *InboxHandler) messageViews(sessionID string) []messageView {
	messages := h.views.Messages(sessionID)
	result := make([]messageView, 0, len(messages))
	for _, msg := range messages {
		draft, _ := h.views.Draft(sessionID, msg.ID)
		result = append(result, messageView{Message: msg, Draft: draft})
	}
	return result
}

// refresh pulls the live unread list and installs it as the session's
// view, seeding fresh drafts.
func (h *InboxHandler) refresh(c *fiber.Ctx) error {
	client, err := api.ProviderClient(c, h.store, h.config)
	if err != nil {
		return err
	}

	ctx := c.Context()
	messages, err := client.FetchUnread(ctx)
	if err != nil {
		return err
	}

	// A request torn down mid-fetch must not install its results.
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	h.views.Replace(api.SessionID(c), messages)
	h.notify.NotifyRefreshed(len(messages))
	return nil
}

// HandleInbox renders the main inbox page
func (h *InboxHandler) HandleInbox(c *fiber.Ctx) error {
	email, _ := c.Locals("email").(string)
	name, _ := c.Locals("name").(string)

	if err := h.refresh(c); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return c.Redirect("/login")
		}
		return utils.InternalServerError("Could not load unread messages", err)
	}

	return c.Render("inbox", fiber.Map{
		"Email":     email,
		"Name":      name,
		"Messages":  h.messageViews(api.SessionID(c)),
		"Templates": api.QuickReplyTemplates,
		"CSRFToken": middleware.GenerateCSRFToken(c),
	})
}

func (h *InboxHandler) renderMessages(c *fiber.Ctx, confirmation string) error {
	// Important: empty layout renders only the fragment
	return c.Render("partials/messages", fiber.Map{
		"Messages":     h.messageViews(api.SessionID(c)),
		"Templates":    api.QuickReplyTemplates,
		"Confirmation": confirmation,
	}, "")
}

// HandleMessagesPartial re-fetches the unread list and re-renders the
// message list fragment.
func (h *InboxHandler) HandleMessagesPartial(c *fiber.Ctx) error {
	if err := h.refresh(c); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return utils.UnauthorizedError("Mailbox session expired", err)
		}
		return utils.InternalServerError("Could not load unread messages", err)
	}
	return h.renderMessages(c, "")
}

// HandleReplyPartial sends the current draft for one message and
// re-renders the list fragment with a confirmation.
func (h *InboxHandler) HandleReplyPartial(c *fiber.Ctx) error {
	sessionID := api.SessionID(c)
	id := c.Params("id")

	msg, ok := h.views.Message(sessionID, id)
	if !ok {
		return utils.NotFoundError("Message is not in the current view", nil)
	}

	body := c.FormValue("body")
	if body == "" {
		body, _ = h.views.Draft(sessionID, id)
	}

	client, err := api.ProviderClient(c, h.store, h.config)
	if err != nil {
		return utils.UnauthorizedError("Mailbox session expired", err)
	}

	if err := api.ReplyToMessage(c.Context(), client, msg, body); err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return utils.InternalServerError("Could not send reply", err)
	}

	h.views.Remove(sessionID, id)
	h.notify.NotifyAnswered(id, msg.SenderLabel())

	return h.renderMessages(c, fmt.Sprintf("Reply sent to %s", msg.SenderLabel()))
}

// HandleReplyAllPartial answers every message with a non-empty draft,
// in view order, and reports the tally.
func (h *InboxHandler) HandleReplyAllPartial(c *fiber.Ctx) error {
	client, err := api.ProviderClient(c, h.store, h.config)
	if err != nil {
		return utils.UnauthorizedError("Mailbox session expired", err)
	}

	sessionID := api.SessionID(c)
	ctx := c.Context()

	answered, failed := 0, 0
	for _, msg := range h.views.Messages(sessionID) {
		draft, ok := h.views.Draft(sessionID, msg.ID)
		if !ok || draft == "" {
			continue
		}

		if err := api.ReplyToMessage(ctx, client, msg, draft); err != nil {
			utils.Log.Warn("Failed to answer %s: %v", msg.ID, err)
			failed++
			continue
		}

		h.views.Remove(sessionID, msg.ID)
		h.notify.NotifyAnswered(msg.ID, msg.SenderLabel())
		answered++
	}

	confirmation := fmt.Sprintf("Answered %d messages", answered)
	if failed > 0 {
		confirmation = fmt.Sprintf("Answered %d messages, %d failed", answered, failed)
	}
	return h.renderMessages(c, confirmation)
}

// HandleDraftPartial stores an edited draft without re-rendering.
func (h *InboxHandler) HandleDraftPartial(c *fiber.Ctx) error {
	if !h.views.SetDraft(api.SessionID(c), c.Params("id"), c.FormValue("body")) {
		return utils.NotFoundError("Message is not in the current view", nil)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleTemplatePartial re-seeds one draft from a catalog template and
// re-renders that message's card.
func (h *InboxHandler) HandleTemplatePartial(c *fiber.Ctx) error {
	tpl, ok := api.TemplateByID(c.Params("template"))
	if !ok {
		return utils.NotFoundError("Unknown template", nil)
	}
	return h.reseedDraft(c, tpl.Generate)
}

// HandleSmartPartial re-seeds one draft from the smart generator and
// re-renders that message's card.
func (h *InboxHandler) HandleSmartPartial(c *fiber.Ctx) error {
	return h.reseedDraft(c, api.SmartReply)
}

func (h *InboxHandler) reseedDraft(c *fiber.Ctx, generate func(models.Message) string) error {
	sessionID := api.SessionID(c)
	id := c.Params("id")

	msg, ok := h.views.Message(sessionID, id)
	if !ok {
		return utils.NotFoundError("Message is not in the current view", nil)
	}

	draft := generate(msg)
	h.views.SetDraft(sessionID, id, draft)

	return c.Render("partials/message", fiber.Map{
		"Message":   messageView{Message: msg, Draft: draft},
		"Templates": api.QuickReplyTemplates,
	}, "")
}
