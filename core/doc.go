// Package core provides the foundational domain types, interfaces and
// execution contexts used by the escalation engine. It defines the core
// abstractions for:
//
//   - Escalations (durable, stateful requests for a human decision)
//   - The escalation state machine and its legal transitions
//   - Agents (tenant-scoped conversational handlers keyed by a closed kind enum)
//   - TurnContext (the per-turn snapshot passed to every agent invocation)
//   - Pluggable stores for escalation records and conversation history
//   - External collaborator interfaces (transport, audit)
//
// The package intentionally keeps implementation concerns (persistence,
// dispatching, concrete agents, completion providers) out of scope, exposing
// small interfaces to enable custom backends and extensions.
package core
