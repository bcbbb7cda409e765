package api

import (
	"context"
	"encoding/base64"
	"strings"

	"replydeck/models"
	"replydeck/utils"
)

// ReplyRequest is the payload for dispatching one reply. The form tags
// let the same struct back both the JSON API and the HTMX form posts.
type ReplyRequest struct {
	MessageID       string `json:"messageId" form:"messageId"`
	ThreadID        string `json:"threadId" form:"threadId"`
	To              string `json:"to" form:"to"`
	Subject         string `json:"subject" form:"subject"`
	Body            string `json:"body" form:"body"`
	MessageHeaderID string `json:"messageHeaderId" form:"messageHeaderId"`
}

// normalizeSubject prefixes "Re: " unless the subject already carries a
// reply marker in any casing. Applying it twice changes nothing.
func normalizeSubject(subject string) string {
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	return subject
}

// buildReplyEnvelope assembles the minimal plaintext reply message.
// Header order is fixed; In-Reply-To and References appear only when the
// original message exposed its Message-ID, preserving thread linkage on
// the recipient's side.
func buildReplyEnvelope(to, subject, messageIDHeader, body string) string {
	var b strings.Builder
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 7bit\r\n")
	if messageIDHeader != "" {
		b.WriteString("In-Reply-To: " + messageIDHeader + "\r\n")
		b.WriteString("References: " + messageIDHeader + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// encodeEnvelope produces the provider's URL-safe unpadded transfer form.
func encodeEnvelope(envelope string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(envelope))
}

func validateReply(req *ReplyRequest) *utils.AppError {
	if strings.TrimSpace(req.Body) == "" {
		return utils.BadRequestError("Reply body is required", nil)
	}
	if req.To == "" {
		return utils.BadRequestError("Reply recipient is required", nil)
	}
	if req.ThreadID == "" {
		return utils.BadRequestError("Reply thread is required", nil)
	}
	if req.Subject == "" {
		return utils.BadRequestError("Reply subject is required", nil)
	}
	return nil
}

// SendReply validates and dispatches one reply, then marks the original
// message answered. The label update after a successful send is best
// effort: its failure is logged and the reply still counts as delivered.
func SendReply(ctx context.Context, client *Client, req *ReplyRequest) error {
	if appErr := validateReply(req); appErr != nil {
		return appErr
	}

	envelope := buildReplyEnvelope(req.To, normalizeSubject(req.Subject), req.MessageHeaderID, req.Body)

	sentID, err := client.SendRaw(ctx, encodeEnvelope(envelope), req.ThreadID)
	if err != nil {
		return err
	}
	utils.Log.Info("Sent reply %s on thread %s", sentID, req.ThreadID)

	if req.MessageID != "" {
		if err := client.Modify(ctx, req.MessageID, []string{labelStarred}, []string{labelUnread}); err != nil {
			utils.Log.Warn("Failed to update labels on %s after reply: %v", req.MessageID, err)
		}
	}

	return nil
}

// ReplyToMessage dispatches a draft against a fetched message, deriving
// the envelope fields the caller did not have to supply.
func ReplyToMessage(ctx context.Context, client *Client, msg models.Message, body string) error {
	req := &ReplyRequest{
		MessageID:       msg.ID,
		ThreadID:        msg.ThreadID,
		To:              msg.Recipient(),
		Subject:         msg.Subject,
		Body:            body,
		MessageHeaderID: msg.MessageIDHeader,
	}
	return SendReply(ctx, client, req)
}
