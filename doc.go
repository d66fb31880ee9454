// Package memento provides a memory-augmented conversational agent
// runtime: a session manager, a bounded tool-calling reasoning loop, and
// background memory and reflection engines that turn completed turns into
// long-term recall without ever blocking the foreground response.
//
// # Using as a Go Library
//
// Import the package that matches the concern you need:
//
//	import (
//	    "github.com/kadirpekel/memento/pkg/conversation"
//	    "github.com/kadirpekel/memento/pkg/session"
//	    "github.com/kadirpekel/memento/pkg/reasoning"
//	)
//
// A conversation.Runtime wires a session.Manager, a reasoning.Loop, and
// the optional memory.Engine / reflection.Engine together behind a single
// Run call.
//
// # Architecture
//
//	Caller -> conversation.Runtime.Run
//	            -> session.Manager   (session lifecycle, hot/cold history)
//	            -> reasoning.Loop    (LLM call, tool dispatch, retries)
//	            -> memory.Engine     (background fact extraction + decisions)
//	            -> reflection.Engine (background reasoning-trace scoring)
//
// Storage, vector search, embeddings, prompts, and tool execution are each
// their own package (pkg/storage, pkg/vector, pkg/embedding, pkg/prompt,
// pkg/toolmgr) so a caller can swap any one backend without touching the
// others. pkg/builtintools exposes the memory and reflection engines as
// tools a model can call directly. pkg/runtime.Build is the composition
// root that wires all of the above from a single Config.
//
// # Status
//
// This module is under active development; APIs may change between minor
// versions.
package memento
