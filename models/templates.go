package models

// QuickReplyTemplate is one entry of the fixed reply catalog. Catalog
// order is significant: the first entry is the default draft applied to
// every message at fetch time. Generate must be pure and deterministic.
type QuickReplyTemplate struct {
	ID       string
	LabelKey string
	Generate func(Message) string
}
