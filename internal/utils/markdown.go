package utils

import (
	"strings"
)

// SanitizeMarkdown cleans raw AI output down to the Markdown body.
// It removes a wrapping code fence (```markdown ... ```) and surrounding whitespace.
func SanitizeMarkdown(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		// Drop the info string (markdown, md, text) up to the first newline
		if i := strings.IndexByte(cleaned, '\n'); i >= 0 && !strings.Contains(cleaned[:i], " ") {
			cleaned = cleaned[i+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}

	return strings.TrimSpace(cleaned)
}
