package memory

import (
	"regexp"
	"strings"
)

// retrievedResultPrefixes catches text that is itself a tool result being
// echoed back rather than something the user actually said, so it never
// gets re-stored as a memory of itself.
var retrievedResultPrefixes = []string{
	"tool result:",
	"retrieved:",
	"search results:",
	"found ",
}

var retrievedResultPattern = regexp.MustCompile(`(?i)^\s*\{.*"(results|content|error)"\s*:`)

var greetingsAndAcks = map[string]bool{
	"hi": true, "hello": true, "hey": true, "yo": true,
	"yes": true, "no": true, "ok": true, "okay": true,
	"thanks": true, "thank you": true, "bye": true, "goodbye": true,
	"sure": true, "cool": true, "nice": true, "great": true,
}

// shouldSkip reports whether fact is not worth processing, and why.
func shouldSkip(fact string, minLength int) (bool, string) {
	trimmed := strings.TrimSpace(fact)
	if trimmed == "" {
		return true, "empty input"
	}

	lower := strings.ToLower(trimmed)
	for _, prefix := range retrievedResultPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true, "looks like a retrieved tool result"
		}
	}
	if retrievedResultPattern.MatchString(trimmed) {
		return true, "looks like a retrieved tool result"
	}

	if greetingsAndAcks[strings.Trim(lower, ".!? ")] {
		return true, "greeting or acknowledgement"
	}

	if len([]rune(trimmed)) < minLength {
		return true, "below significance threshold"
	}

	return false, ""
}
