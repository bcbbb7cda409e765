package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanSnippet(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text untouched", "Quick question about the invoice", "Quick question about the invoice"},
		{"entities decoded", "Let&#39;s sync tomorrow &amp; confirm", "Let's sync tomorrow & confirm"},
		{"tags stripped", "Hi <b>there</b>, any update?", "Hi there, any update?"},
		{"script dropped", "before<script>alert(1)</script>after", "beforeafter"},
		{"surrounding whitespace trimmed", "  hello  ", "hello"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanSnippet(tt.input))
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "one two three", CollapseWhitespace("one\n  two\t\tthree"))
	assert.Equal(t, "", CollapseWhitespace("   \n\t  "))
	assert.Equal(t, "solo", CollapseWhitespace("solo"))
}
