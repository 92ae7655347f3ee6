package llm

import (
	"regexp"
	"strings"
)

var (
	thinkBlock    = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkHeading  = regexp.MustCompile(`(?is)\*\*Think.*?\*\*`)
	summaryPrefix = regexp.MustCompile(`(?i)^Here's a summary:`)
)

// Sanitize strips reasoning artifacts and boilerplate from model output.
// It is applied until the text stops changing, so Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(raw string) string {
	out := raw
	for {
		next := thinkBlock.ReplaceAllString(out, "")
		next = thinkHeading.ReplaceAllString(next, "")
		next = summaryPrefix.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == out {
			return out
		}
		out = next
	}
}
