package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"replydeck/utils"
)

// Notification is one real-time event pushed to connected clients.
type Notification struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"` // "answered", "refreshed"
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
	Time    time.Time              `json:"time"`
}

// NotificationHandler fans events out to SSE and websocket subscribers.
type NotificationHandler struct {
	store       *session.Store
	subscribers map[string]chan Notification
	mu          sync.RWMutex
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(store *session.Store) *NotificationHandler {
	return &NotificationHandler{
		store:       store,
		subscribers: make(map[string]chan Notification),
	}
}

// HandleSSE streams events over Server-Sent Events.
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	if _, err := GetSessionToken(c, h.store); err != nil {
		return utils.UnauthorizedError("Invalid session", err)
	}

	subscriberID := uuid.New().String()
	messageChan := make(chan Notification, 10)

	h.mu.Lock()
	h.subscribers[subscriberID] = messageChan
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subscribers, subscriberID)
		close(messageChan)
		h.mu.Unlock()

		utils.Log.Info("SSE subscriber disconnected: %s", subscriberID)
	}()

	utils.Log.Info("SSE subscriber connected: %s", subscriberID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// Keep-alive ticker
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case notification := <-messageChan:
				data, _ := json.Marshal(notification)
				w.WriteString("data: " + string(data) + "\n\n")
				w.Flush()

			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				w.Flush()

			case <-c.Context().Done():
				return
			}
		}
	}))

	return nil
}

// HandleWebSocket pushes events over a websocket connection.
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	subscriberID := uuid.New().String()
	messageChan := make(chan Notification, 10)

	h.mu.Lock()
	h.subscribers[subscriberID] = messageChan
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subscribers, subscriberID)
		close(messageChan)
		h.mu.Unlock()

		c.Close()
		utils.Log.Info("WebSocket subscriber disconnected: %s", subscriberID)
	}()

	utils.Log.Info("WebSocket subscriber connected: %s", subscriberID)

	for notification := range messageChan {
		if err := c.WriteJSON(notification); err != nil {
			utils.Log.Error("Failed to send WebSocket notification: %v", err)
			break
		}
	}
}

// BroadcastNotification sends an event to every subscriber. A
// subscriber whose channel is full is skipped, not blocked on.
func (h *NotificationHandler) BroadcastNotification(notification Notification) {
	notification.ID = uuid.New().String()
	notification.Time = time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	utils.Log.Debug("Broadcasting notification: type=%s to %d subscribers", notification.Type, len(h.subscribers))

	for subscriberID, ch := range h.subscribers {
		select {
		case ch <- notification:
			// Sent successfully
		default:
			utils.Log.Warn("Notification channel full for subscriber %s", subscriberID)
		}
	}
}

// NotifyAnswered announces that a message left the inbox with a reply.
func (h *NotificationHandler) NotifyAnswered(messageID, recipient string) {
	h.BroadcastNotification(Notification{
		Type:    "answered",
		Message: "Reply sent to " + recipient,
		Data: map[string]interface{}{
			"messageId": messageID,
			"recipient": recipient,
		},
	})
}

// NotifyRefreshed announces a freshly fetched unread view.
func (h *NotificationHandler) NotifyRefreshed(count int) {
	h.BroadcastNotification(Notification{
		Type:    "refreshed",
		Message: "Inbox refreshed",
		Data: map[string]interface{}{
			"count": count,
		},
	})
}
