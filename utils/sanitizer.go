package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	// StrictPolicy removes all markup from untrusted provider text
	StrictPolicy *bluemonday.Policy
)

func init() {
	StrictPolicy = bluemonday.StrictPolicy()
}

// StripHTML removes all HTML tags from content
func StripHTML(content string) string {
	return StrictPolicy.Sanitize(content)
}

// CleanSnippet normalizes a provider-supplied message preview into plain
// text: markup stripped, entities decoded, surrounding whitespace trimmed.
// Snippets arrive entity-escaped and occasionally carry stray tags, so
// both passes are needed.
func CleanSnippet(snippet string) string {
	text := StrictPolicy.Sanitize(snippet)
	text = html.UnescapeString(text)
	return strings.TrimSpace(text)
}

// CollapseWhitespace folds all internal whitespace runs, including
// newlines, into single spaces and trims the ends.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
