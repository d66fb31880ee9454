package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCodePatternPrefersFencedBlock(t *testing.T) {
	fact := "Run this:\n```bash\nnpm install\n```\nthen `npm run build` too."
	assert.Equal(t, "npm install", extractCodePattern(fact))
}

func TestExtractCodePatternFallsBackToInlineCode(t *testing.T) {
	assert.Equal(t, "npm run build", extractCodePattern("just run `npm run build`"))
}

func TestExtractCodePatternFallsBackToShellLine(t *testing.T) {
	pattern := extractCodePattern("From the terminal:\n$ go test ./...\ndone")
	assert.Contains(t, pattern, "go test")
}

func TestExtractTagsDetectsNpmTool(t *testing.T) {
	_, tags := extract("Use npm install next and run npm run build")
	assert.Contains(t, tags, "npm")
}

func TestExtractTagsDefaultsToGeneralKnowledge(t *testing.T) {
	_, tags := extract("The sky looks nice today")
	assert.Equal(t, []string{"general-knowledge"}, tags)
}

func TestExtractTagsDetectsErrorHandlingAndConfig(t *testing.T) {
	_, tags := extract("Got a panic when reading the .env config file")
	assert.Contains(t, tags, "error-handling")
	assert.Contains(t, tags, "configuration")
}
