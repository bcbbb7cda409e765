package api

import (
	"fmt"
	"strings"

	"replydeck/models"
	"replydeck/utils"
)

// QuickReplyTemplates is the fixed reply catalog, in display order. The
// first entry is the default seeded into every fetched message's draft.
var QuickReplyTemplates = []models.QuickReplyTemplate{
	{ID: "acknowledge", LabelKey: "template_acknowledge", Generate: acknowledgeReply},
	{ID: "schedule", LabelKey: "template_schedule", Generate: scheduleReply},
	{ID: "follow-up", LabelKey: "template_follow_up", Generate: followUpReply},
}

// DefaultTemplate returns the catalog entry used to seed new drafts.
func DefaultTemplate() models.QuickReplyTemplate {
	return QuickReplyTemplates[0]
}

// TemplateByID looks up a catalog entry by its stable id.
func TemplateByID(id string) (models.QuickReplyTemplate, bool) {
	for _, tpl := range QuickReplyTemplates {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return models.QuickReplyTemplate{}, false
}

func greetingName(msg models.Message) string {
	if msg.FromName != "" {
		return msg.FromName
	}
	return "there"
}

func acknowledgeReply(msg models.Message) string {
	return fmt.Sprintf("Hi %s,\n\nThanks for your message about \"%s\". I've received it and will get back to you with a proper reply shortly.\n\nBest regards",
		greetingName(msg), msg.Subject)
}

func scheduleReply(msg models.Message) string {
	return fmt.Sprintf("Hi %s,\n\nThanks for reaching out about \"%s\". Could we find a time to talk it through? Send me a couple of slots that work for you and I'll set something up.\n\nBest regards",
		greetingName(msg), msg.Subject)
}

func followUpReply(msg models.Message) string {
	return fmt.Sprintf("Hi %s,\n\nI need a few more days to give \"%s\" the attention it deserves. I'll follow up by the end of the week.\n\nBest regards",
		greetingName(msg), msg.Subject)
}

// SmartReply builds a personalized draft from the message's own content.
// A message without a parsed sender address falls back to the default
// template. Same message in, same draft out, always.
func SmartReply(msg models.Message) string {
	if msg.FromAddress == "" {
		return DefaultTemplate().Generate(msg)
	}

	greeting := "Hello,"
	if msg.FromName != "" {
		greeting = "Hi " + msg.FromName + ","
	}

	snippet := utils.CollapseWhitespace(msg.Snippet)

	var b strings.Builder
	b.WriteString(greeting)
	b.WriteString("\n\nThanks for your email about \"")
	b.WriteString(msg.Subject)
	b.WriteString("\". ")
	if snippet != "" {
		b.WriteString("Here's what I understood: \"")
		b.WriteString(snippet)
		b.WriteString("\". ")
	}
	b.WriteString("I'll get back to you with a fuller answer shortly.\n\nBest regards")
	return b.String()
}
