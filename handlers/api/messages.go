package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"replydeck/config"
	"replydeck/utils"
)

// MessagesHandler serves the unread working set and dispatches replies.
type MessagesHandler struct {
	store  *session.Store
	config *config.Config
	views  *ViewStore
	notify *NotificationHandler
}

// NewMessagesHandler creates a new messages handler
func NewMessagesHandler(store *session.Store, cfg *config.Config, views *ViewStore, notify *NotificationHandler) *MessagesHandler {
	return &MessagesHandler{
		store:  store,
		config: cfg,
		views:  views,
		notify: notify,
	}
}

// providerError maps a mailbox client failure onto the API contract:
// rejected credentials answer 401, everything else a generic 500.
func providerError(err error, message string) *utils.AppError {
	if errors.Is(err, ErrUnauthorized) {
		return utils.UnauthorizedError("Mailbox session expired", err)
	}
	return utils.InternalServerError(message, err)
}

// HandleList re-queries the provider for unread messages, installs the
// result as the session's view, and returns it.
func (h *MessagesHandler) HandleList(c *fiber.Ctx) error {
	client, err := ProviderClient(c, h.store, h.config)
	if err != nil {
		return utils.UnauthorizedError("Mailbox session expired", err)
	}

	ctx := c.Context()
	messages, err := client.FetchUnread(ctx)
	if err != nil {
		return providerError(err, "Could not load unread messages")
	}

	// A request torn down mid-fetch must not install its results.
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	h.views.Replace(SessionID(c), messages)
	h.notify.NotifyRefreshed(len(messages))

	return c.JSON(fiber.Map{"messages": messages})
}

// HandleReply dispatches one reply and retires the answered message
// from the session's view.
func (h *MessagesHandler) HandleReply(c *fiber.Ctx) error {
	var req ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	client, err := ProviderClient(c, h.store, h.config)
	if err != nil {
		return utils.UnauthorizedError("Mailbox session expired", err)
	}

	sessionID := SessionID(c)
	recipient := req.To
	if msg, ok := h.views.Message(sessionID, req.MessageID); ok {
		recipient = msg.SenderLabel()
	}

	if err := SendReply(c.Context(), client, &req); err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return providerError(err, "Could not send reply")
	}

	h.views.Remove(sessionID, req.MessageID)
	h.notify.NotifyAnswered(req.MessageID, recipient)

	return c.JSON(fiber.Map{
		"ok":        true,
		"recipient": recipient,
	})
}

// HandleReplyAll walks the current view in order and sends every
// non-empty draft. One message failing never stops the rest; the
// answer reports what happened to each id.
func (h *MessagesHandler) HandleReplyAll(c *fiber.Ctx) error {
	client, err := ProviderClient(c, h.store, h.config)
	if err != nil {
		return utils.UnauthorizedError("Mailbox session expired", err)
	}

	sessionID := SessionID(c)
	ctx := c.Context()

	answered := make([]string, 0)
	skipped := make([]string, 0)
	failed := make([]string, 0)

	for _, msg := range h.views.Messages(sessionID) {
		draft, ok := h.views.Draft(sessionID, msg.ID)
		if !ok || strings.TrimSpace(draft) == "" {
			skipped = append(skipped, msg.ID)
			continue
		}

		if err := ReplyToMessage(ctx, client, msg, draft); err != nil {
			utils.Log.Warn("Failed to answer %s: %v", msg.ID, err)
			failed = append(failed, msg.ID)
			continue
		}

		h.views.Remove(sessionID, msg.ID)
		h.notify.NotifyAnswered(msg.ID, msg.SenderLabel())
		answered = append(answered, msg.ID)
	}

	return c.JSON(fiber.Map{
		"answered": answered,
		"skipped":  skipped,
		"failed":   failed,
	})
}

// DraftRequest carries a hand-edited draft body.
type DraftRequest struct {
	Body string `json:"body" form:"body"`
}

// HandleDraftUpdate stores a user-edited draft for a message.
func (h *MessagesHandler) HandleDraftUpdate(c *fiber.Ctx) error {
	var req DraftRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequestError("Invalid request", err)
	}

	if !h.views.SetDraft(SessionID(c), c.Params("id"), req.Body) {
		return utils.NotFoundError("Message is not in the current view", nil)
	}

	return c.JSON(fiber.Map{"ok": true})
}

// HandleDraftTemplate re-seeds a draft from a catalog template.
func (h *MessagesHandler) HandleDraftTemplate(c *fiber.Ctx) error {
	tpl, ok := TemplateByID(c.Params("template"))
	if !ok {
		return utils.NotFoundError("Unknown template", nil)
	}

	sessionID := SessionID(c)
	id := c.Params("id")

	msg, ok := h.views.Message(sessionID, id)
	if !ok {
		return utils.NotFoundError("Message is not in the current view", nil)
	}

	draft := tpl.Generate(msg)
	h.views.SetDraft(sessionID, id, draft)

	return c.JSON(fiber.Map{
		"ok":    true,
		"draft": draft,
	})
}

// HandleDraftSmart re-seeds a draft from the smart generator.
func (h *MessagesHandler) HandleDraftSmart(c *fiber.Ctx) error {
	sessionID := SessionID(c)
	id := c.Params("id")

	msg, ok := h.views.Message(sessionID, id)
	if !ok {
		return utils.NotFoundError("Message is not in the current view", nil)
	}

	draft := SmartReply(msg)
	h.views.SetDraft(sessionID, id, draft)

	return c.JSON(fiber.Map{
		"ok":    true,
		"draft": draft,
	})
}

// HandleTemplates lists the reply catalog with localized labels.
func (h *MessagesHandler) HandleTemplates(c *fiber.Ctx) error {
	localizer, _ := c.Locals("localizer").(*i18n.Localizer)

	templates := make([]fiber.Map, 0, len(QuickReplyTemplates))
	for _, tpl := range QuickReplyTemplates {
		label := tpl.ID
		if localizer != nil {
			label = utils.T(localizer, tpl.LabelKey)
		}
		templates = append(templates, fiber.Map{
			"id":    tpl.ID,
			"label": label,
		})
	}

	return c.JSON(fiber.Map{"templates": templates})
}
