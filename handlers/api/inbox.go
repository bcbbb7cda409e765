package api

import (
	"context"
	"strings"
	"sync"

	"replydeck/models"
	"replydeck/utils"
)

// FetchUnread returns the current unread working set in the order the
// provider listed it. Each call re-queries live state.
//
// Enrichment lookups for the listed ids run in parallel; the final slice
// keeps the listing order. A lookup that comes back without an id is
// dropped silently. Any lookup error fails the whole fetch with no
// partial results.
func (c *Client) FetchUnread(ctx context.Context) ([]models.Message, error) {
	refs, err := c.ListUnread(ctx)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return []models.Message{}, nil
	}

	results := make([]*models.Message, len(refs))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fetchErr error
	)
	for i, ref := range refs {
		if ref.ID == "" {
			continue
		}

		wg.Add(1)
		go func(slot int, id string) {
			defer wg.Done()

			meta, err := c.GetMetadata(ctx, id)
			if err != nil {
				mu.Lock()
				if fetchErr == nil {
					fetchErr = err
				}
				mu.Unlock()
				return
			}
			if meta.ID == "" {
				return
			}

			msg := buildMessage(meta)
			results[slot] = &msg
		}(i, ref.ID)
	}
	wg.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}

	messages := make([]models.Message, 0, len(refs))
	for _, msg := range results {
		if msg != nil {
			messages = append(messages, *msg)
		}
	}

	utils.Log.Debug("Fetched %d unread messages (%d listed)", len(messages), len(refs))

	return messages, nil
}

// buildMessage normalizes raw provider metadata into a Message record.
func buildMessage(meta *MessageMetadata) models.Message {
	from := meta.Header("From")
	name, address := ParseSender(from)

	subject := strings.TrimSpace(meta.Header("Subject"))
	if subject == "" {
		subject = models.NoSubject
	}

	return models.Message{
		ID:              meta.ID,
		ThreadID:        meta.ThreadID,
		Subject:         subject,
		From:            from,
		FromName:        name,
		FromAddress:     address,
		Date:            meta.Header("Date"),
		MessageIDHeader: meta.Header("Message-ID"),
		Snippet:         utils.CleanSnippet(meta.Snippet),
	}
}
