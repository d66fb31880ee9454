package memory

import (
	"fmt"
	"strings"
)

const summaryFieldLimit = 50

// BuildInteractionSummary renders the deterministic one-paragraph summary
// of a turn used as LLM-decision context and for observability: a "User:"
// line, an optional "Tools used:" line, an optional "Tool results:" line,
// and a trailing "Assistant:" line.
func BuildInteractionSummary(in Interaction) string {
	var lines []string
	lines = append(lines, "User: "+in.UserInput)

	if len(in.ToolsUsed) > 0 {
		var uses []string
		for _, t := range in.ToolsUsed {
			uses = append(uses, fmt.Sprintf("%s with %s", t.Name, summarizeArgs(t.Args)))
		}
		lines = append(lines, "Tools used: "+strings.Join(uses, ", "))

		var results []string
		for _, t := range in.ToolsUsed {
			results = append(results, fmt.Sprintf("%s: %s", t.Name, summarizeResult(t.Name, t.Result)))
		}
		lines = append(lines, "Tool results: "+strings.Join(results, ", "))
	}

	lines = append(lines, "Assistant: "+in.AssistantText)
	return strings.Join(lines, "\n")
}

// summarizeArgs reduces a tool call's arguments to a short, stable string:
// the first of path/query/file/name found in the map, else a compact
// key=value listing, truncated to summaryFieldLimit characters either way.
func summarizeArgs(args map[string]any) string {
	for _, key := range []string{"path", "query", "file", "name"} {
		if v, ok := args[key]; ok {
			return truncate(fmt.Sprintf("%s=%v", key, v), summaryFieldLimit)
		}
	}
	if len(args) == 0 {
		return "no arguments"
	}
	var parts []string
	for k, v := range args {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return truncate(strings.Join(parts, ","), summaryFieldLimit)
}

// summarizeResult condenses a tool's raw result text to a short
// description: line/char counts for a file-reading tool, an entry count
// for a memory/search tool, else a truncated excerpt.
func summarizeResult(toolName, result string) string {
	lower := strings.ToLower(toolName)
	switch {
	case strings.Contains(lower, "read") || strings.Contains(lower, "file"):
		lines := 0
		if result != "" {
			lines = strings.Count(result, "\n") + 1
		}
		return fmt.Sprintf("%d lines, %d chars", lines, len(result))
	case strings.Contains(lower, "search") || strings.Contains(lower, "memory"):
		count := 0
		for _, line := range strings.Split(strings.TrimSpace(result), "\n") {
			if strings.TrimSpace(line) != "" {
				count++
			}
		}
		return fmt.Sprintf("found %d entries", count)
	default:
		return truncate(result, summaryFieldLimit)
	}
}
