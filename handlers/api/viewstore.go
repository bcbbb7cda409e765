package api

import (
	"sync"
	"time"

	"replydeck/models"
)

// inboxView is one session's working set: the fetched messages in
// listing order plus a reply draft per message id.
type inboxView struct {
	messages []models.Message
	drafts   map[string]string
	touched  time.Time
}

// ViewStore holds the per-session inbox views. Views live in memory
// only and die with the process; a view idle past its ttl is evicted
// by the sweep goroutine.
type ViewStore struct {
	mu    sync.RWMutex
	views map[string]*inboxView
	ttl   time.Duration
}

// NewViewStore creates a view store whose idle views expire after ttl.
func NewViewStore(ttl time.Duration) *ViewStore {
	store := &ViewStore{
		views: make(map[string]*inboxView),
		ttl:   ttl,
	}

	go store.cleanupLoop()

	return store
}

// Replace installs a freshly fetched message list for the session and
// seeds every draft from the default template. The previous view and
// its drafts are discarded, so an id that disappears and later comes
// back starts over with a fresh default draft.
func (s *ViewStore) Replace(sessionID string, messages []models.Message) {
	drafts := make(map[string]string, len(messages))
	for _, msg := range messages {
		drafts[msg.ID] = DefaultTemplate().Generate(msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.views[sessionID] = &inboxView{
		messages: append([]models.Message(nil), messages...),
		drafts:   drafts,
		touched:  time.Now(),
	}
}

// Messages returns a copy of the session's view in listing order.
func (s *ViewStore) Messages(sessionID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view, ok := s.views[sessionID]
	if !ok {
		return []models.Message{}
	}
	return append([]models.Message(nil), view.messages...)
}

// Message returns one message from the session's view.
func (s *ViewStore) Message(sessionID, id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view, ok := s.views[sessionID]
	if !ok {
		return models.Message{}, false
	}
	for _, msg := range view.messages {
		if msg.ID == id {
			return msg, true
		}
	}
	return models.Message{}, false
}

// Draft returns the stored draft for a message in the session's view.
func (s *ViewStore) Draft(sessionID, id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view, ok := s.views[sessionID]
	if !ok {
		return "", false
	}
	draft, ok := view.drafts[id]
	return draft, ok
}

// SetDraft stores a draft body for a message. Returns false when the
// message is not part of the session's current view.
func (s *ViewStore) SetDraft(sessionID, id, body string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, ok := s.views[sessionID]
	if !ok {
		return false
	}
	if _, ok := view.drafts[id]; !ok {
		return false
	}
	view.drafts[id] = body
	view.touched = time.Now()
	return true
}

// Remove takes an answered message and its draft out of the view.
func (s *ViewStore) Remove(sessionID, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, ok := s.views[sessionID]
	if !ok {
		return
	}

	for i, msg := range view.messages {
		if msg.ID == id {
			view.messages = append(view.messages[:i], view.messages[i+1:]...)
			break
		}
	}
	delete(view.drafts, id)
	view.touched = time.Now()
}

// Drop discards the session's view entirely.
func (s *ViewStore) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.views, sessionID)
}

func (s *ViewStore) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

func (s *ViewStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	for sessionID, view := range s.views {
		if view.touched.Before(cutoff) {
			delete(s.views, sessionID)
		}
	}
}
