package memory

import (
	"regexp"
	"strings"
)

var (
	fencedCodePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n?(.*?)```")
	inlineCodePattern = regexp.MustCompile("`([^`\n]+)`")
	shellPattern      = regexp.MustCompile(`(?m)^\s*[$#>]\s*\S.*$`)
	filePathPattern   = regexp.MustCompile(`(?:[./][\w.-]+)+\.[a-zA-Z0-9]{1,8}\b`)
	errorPattern      = regexp.MustCompile(`(?i)\b(error|exception|panic|traceback|try|catch|stack trace)\b`)
	configPattern     = regexp.MustCompile(`(?i)\b(config|\.env|yaml|yml|settings|environment variable)\b`)
	apiPattern        = regexp.MustCompile(`(?i)\b(api|endpoint|http|rest|graphql|webhook)\b`)
)

var languageKeywords = map[string]string{
	"golang":     "go",
	" go ":       "go",
	"python":     "python",
	"javascript": "javascript",
	"typescript": "typescript",
	"rust":       "rust",
	"java":       "java",
	"ruby":       "ruby",
	"c++":        "cpp",
	"kotlin":     "kotlin",
	"swift":      "swift",
}

var frameworkKeywords = []string{
	"react", "vue", "angular", "django", "flask", "express", "rails",
	"spring", "next.js", "nextjs", "fastapi", "gin", "echo",
}

var toolKeywords = []string{
	"npm", "yarn", "pnpm", "docker", "kubectl", "git", "make",
	"terraform", "ansible", "helm", "pip", "cargo", "gradle", "maven",
}

// extract pulls a representative code pattern and a set of classifying
// tags out of fact, in that priority: fenced code block, inline code,
// shell/CLI command line, else no code pattern.
func extract(fact string) (codePattern string, tags []string) {
	codePattern = extractCodePattern(fact)
	tags = extractTags(fact, codePattern)
	return codePattern, tags
}

func extractCodePattern(fact string) string {
	if m := fencedCodePattern.FindStringSubmatch(fact); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := inlineCodePattern.FindStringSubmatch(fact); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := shellPattern.FindString(fact); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

func extractTags(fact, codePattern string) []string {
	lower := " " + strings.ToLower(fact) + " "

	seen := map[string]bool{}
	var tags []string
	add := func(tag string) {
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	sawLanguage := false
	for keyword, lang := range languageKeywords {
		if strings.Contains(lower, keyword) {
			add(lang)
			sawLanguage = true
		}
	}
	for _, fw := range frameworkKeywords {
		if strings.Contains(lower, fw) {
			add(fw)
		}
	}
	for _, tool := range toolKeywords {
		if strings.Contains(lower, tool) {
			add(tool)
		}
	}

	if codePattern != "" {
		add("code-block")
	}
	if sawLanguage {
		add("programming")
	}
	if filePathPattern.MatchString(fact) {
		add("file-path")
	}
	if errorPattern.MatchString(fact) {
		add("error-handling")
	}
	if configPattern.MatchString(fact) {
		add("configuration")
	}
	if apiPattern.MatchString(fact) {
		add("api")
	}

	if len(tags) == 0 {
		add("general-knowledge")
	}
	return tags
}
