// Package logging defines the minimal Logger interface consumed across the
// escalation engine plus adapters for log/slog and a structured
// WorkflowLogger with tenant/conversation context helpers. Components accept
// the interface so applications can plug any structured logger; the NoOp
// implementation keeps tests and examples quiet by default.
package logging
