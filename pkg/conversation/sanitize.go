package conversation

import (
	"regexp"
	"strings"
)

var (
	notIDChar    = regexp.MustCompile(`[^\w-]`)
	reservedLead = regexp.MustCompile(`(?i)^(empty|null|undefined)-`)
	repeatedDash = regexp.MustCompile(`-{2,}`)
)

const (
	maxSessionIDLength = 64
	minSessionIDLength = 3
)

// sanitizeSessionID normalizes a caller-supplied session id before it ever
// reaches storage: trim, replace anything that isn't a word character or
// dash with a dash, strip a leading empty-/null-/undefined- marker,
// collapse repeated dashes, trim leading/trailing dashes, and cap the
// length. An id too short to be meaningful after sanitizing is rejected
// so the caller falls back to a generated one instead of a near-empty
// string.
func sanitizeSessionID(id string) (string, bool) {
	s := strings.TrimSpace(id)
	s = notIDChar.ReplaceAllString(s, "-")
	s = reservedLead.ReplaceAllString(s, "")
	s = repeatedDash.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	if len(s) > maxSessionIDLength {
		s = strings.Trim(s[:maxSessionIDLength], "-")
	}

	if len(s) < minSessionIDLength {
		return "", false
	}
	return s, true
}
