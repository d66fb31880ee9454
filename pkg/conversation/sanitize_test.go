package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeSessionIDPassesThroughCleanID(t *testing.T) {
	id, ok := sanitizeSessionID("my-session_1")
	assert.True(t, ok)
	assert.Equal(t, "my-session_1", id)
}

func TestSanitizeSessionIDReplacesIllegalCharacters(t *testing.T) {
	id, ok := sanitizeSessionID("my session!!id")
	assert.True(t, ok)
	assert.Equal(t, "my-session-id", id)
}

func TestSanitizeSessionIDStripsReservedLeadMarker(t *testing.T) {
	id, ok := sanitizeSessionID("undefined-real-id")
	assert.True(t, ok)
	assert.Equal(t, "real-id", id)
}

func TestSanitizeSessionIDRejectsWhenTooShortAfterStripping(t *testing.T) {
	_, ok := sanitizeSessionID("null-")
	assert.False(t, ok)
}

func TestSanitizeSessionIDCapsLength(t *testing.T) {
	long := strings.Repeat("a", 100)
	id, ok := sanitizeSessionID(long)
	assert.True(t, ok)
	assert.LessOrEqual(t, len(id), maxSessionIDLength)
}

func TestSanitizeSessionIDCollapsesRepeatedDashes(t *testing.T) {
	id, ok := sanitizeSessionID("a---b")
	assert.True(t, ok)
	assert.Equal(t, "a-b", id)
}
