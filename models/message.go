package models

// Message is one unread inbox entry as shown in the working set. Field
// values come from the provider's metadata fetch; empty strings mean the
// provider omitted the value.
type Message struct {
	ID              string `json:"id"`
	ThreadID        string `json:"threadId"`
	Subject         string `json:"subject"`
	From            string `json:"from"`
	FromName        string `json:"fromName"`
	FromAddress     string `json:"fromAddress"`
	Date            string `json:"date"`
	MessageIDHeader string `json:"messageIdHeader"`
	Snippet         string `json:"snippet"`
}

// NoSubject is shown when a message arrives without a Subject header.
const NoSubject = "(no subject)"

// Recipient returns the address a reply to this message should go to,
// falling back from the parsed address to the raw From header.
func (m Message) Recipient() string {
	if m.FromAddress != "" {
		return m.FromAddress
	}
	return m.From
}

// SenderLabel names the sender for confirmations, preferring the display
// name over the address.
func (m Message) SenderLabel() string {
	if m.FromName != "" {
		return m.FromName
	}
	if m.FromAddress != "" {
		return m.FromAddress
	}
	return m.From
}
