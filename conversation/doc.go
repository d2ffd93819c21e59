// Package conversation implements the append-only per-user message log
// consumed as a bounded sliding window. The dispatcher appends every inbound
// and outbound turn; the coordinator reads the recent window when it
// snapshots a conversation into a new escalation record.
package conversation
