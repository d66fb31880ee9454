package prompt

import (
	"context"
	"fmt"
	"os"
	"time"
)

// RegisterBuiltins registers the generators every deployment can rely on
// being present: timestamp, session-context, memory-context, environment,
// and conditional. Callers may register additional generators, or override
// these, after calling this.
func RegisterBuiltins(reg *GeneratorRegistry) {
	reg.Register("timestamp", timestampGenerator)
	reg.Register("session-context", sessionContextGenerator)
	reg.Register("memory-context", memoryContextGenerator)
	reg.Register("environment", environmentGenerator)
	reg.Register("conditional", conditionalGenerator)
}

// timestampGenerator renders the current time. config["format"] is a Go
// reference-time layout; defaults to time.RFC3339.
func timestampGenerator(ctx context.Context, pctx Context, config map[string]string) (string, error) {
	layout := config["format"]
	if layout == "" {
		layout = time.RFC3339
	}
	return time.Now().Format(layout), nil
}

// sessionContextGenerator renders the current session id, if any.
func sessionContextGenerator(ctx context.Context, pctx Context, config map[string]string) (string, error) {
	if pctx.SessionID == "" {
		return "", nil
	}
	prefix := config["prefix"]
	if prefix == "" {
		prefix = "Session: "
	}
	return prefix + pctx.SessionID, nil
}

// memoryContextGenerator renders retrieved memory content passed in via
// pctx.Variables under config["variable"] (default "memory_context"). The
// memory subsystem is responsible for populating that variable before
// composition; this generator only renders it into the prompt.
func memoryContextGenerator(ctx context.Context, pctx Context, config map[string]string) (string, error) {
	key := config["variable"]
	if key == "" {
		key = "memory_context"
	}
	content, ok := pctx.Variables[key]
	if !ok || content == "" {
		return "", nil
	}
	header := config["header"]
	if header == "" {
		header = "Relevant memory:"
	}
	return header + "\n" + content, nil
}

// environmentGenerator renders the value of an OS environment variable
// named by config["name"].
func environmentGenerator(ctx context.Context, pctx Context, config map[string]string) (string, error) {
	name := config["name"]
	if name == "" {
		return "", nil
	}
	value := os.Getenv(name)
	if value == "" {
		return "", nil
	}
	if label := config["label"]; label != "" {
		return fmt.Sprintf("%s: %s", label, value), nil
	}
	return value, nil
}

// conditionalGenerator renders config["content"] only when a variable
// named by config["variable"] is present and equals config["equals"] (or
// is merely non-empty, if config["equals"] is unset).
func conditionalGenerator(ctx context.Context, pctx Context, config map[string]string) (string, error) {
	varName := config["variable"]
	if varName == "" {
		return "", nil
	}
	value, ok := pctx.Variables[varName]
	if !ok {
		return "", nil
	}
	if expected, hasExpected := config["equals"]; hasExpected && value != expected {
		return "", nil
	}
	if value == "" {
		return "", nil
	}
	return config["content"], nil
}
