// Package agent contains the conversational handlers for each origin kind
// (teacher, parent, group). Agents detect when a turn needs an administrator
// decision and signal it through the TurnResult; they never talk to the
// escalation store directly. On resumption turns they translate the recorded
// decision into a user-facing reply.
package agent
