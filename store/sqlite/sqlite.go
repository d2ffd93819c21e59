// Package sqlite contains the durable SQLite implementation of the
// escalation store. State transitions are compare-and-swap UPDATEs guarded on
// the expected source state, so concurrent transition attempts on one record
// serialize at the database without external locking.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/schoolmesh/escalation/core"
)

// SchemaSQL is the single source of truth for the escalation schema. Tests
// use it through Open/OpenInMemory, so any drift between repository code and
// schema fails immediately with "no such column".
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	origin_kind TEXT NOT NULL CHECK(origin_kind IN ('teacher', 'parent', 'group')),
	type TEXT NOT NULL,
	priority TEXT NOT NULL CHECK(priority IN ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL')),
	origin_address TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	trigger_message_id TEXT,
	reporter_name TEXT,
	reporter_role TEXT,
	reason TEXT NOT NULL,
	needed_description TEXT NOT NULL,
	snapshot TEXT,
	payload TEXT,
	requested_decision TEXT,
	allowed_actions TEXT,
	state TEXT NOT NULL CHECK(state IN ('PAUSED', 'AWAITING_CLARIFICATION', 'IN_AUTHORITY', 'RESOLVED', 'RESUMED', 'FAILED')),
	decision_action TEXT,
	decision_instruction TEXT,
	decision_resolver TEXT,
	decision_intent_clear INTEGER,
	decided_at DATETIME,
	failure_reason TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	resolved_at DATETIME,
	resumed_at DATETIME,
	archived INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_escalations_tenant_state ON escalations(tenant_id, state);

-- Database-level backstop for the single-open-escalation invariant.
CREATE UNIQUE INDEX IF NOT EXISTS idx_escalations_open_trigger
	ON escalations(tenant_id, conversation_id, type)
	WHERE state IN ('PAUSED', 'AWAITING_CLARIFICATION', 'IN_AUTHORITY');
`

// Store implements core.EscalationStore with SQLite.
type Store struct {
	db *sql.DB
}

// New wraps an existing database handle. The schema must already exist (use
// Open or InitSchema).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if necessary) the database at path and initializes the
// schema. Foreign keys are enabled on the connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := InitSchema(db); err != nil {
		return nil, err
	}
	return New(db), nil
}

// OpenInMemory opens a named in-memory database. The shared cache keeps the
// database alive across the pool's connections; distinct names give callers
// isolated databases. Used by tests.
func OpenInMemory(name string) (*Store, error) {
	return Open("file:" + name + "?mode=memory&cache=shared&_busy_timeout=5000")
}

// InitSchema applies SchemaSQL to the handle.
func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

const escalationColumns = `id, tenant_id, origin_kind, type, priority, origin_address, conversation_id,
	trigger_message_id, reporter_name, reporter_role, reason, needed_description,
	snapshot, payload, requested_decision, allowed_actions, state,
	decision_action, decision_instruction, decision_resolver, decision_intent_clear, decided_at,
	failure_reason, created_at, updated_at, resolved_at, resumed_at, archived`

// Create persists a new escalation.
func (s *Store) Create(ctx context.Context, e *core.Escalation) error {
	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	allowed, err := json.Marshal(e.AllowedActions)
	if err != nil {
		return fmt.Errorf("failed to encode allowed actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO escalations (id, tenant_id, origin_kind, type, priority, origin_address, conversation_id,
			trigger_message_id, reporter_name, reporter_role, reason, needed_description,
			snapshot, payload, requested_decision, allowed_actions, state,
			created_at, updated_at, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		e.ID, e.TenantID, string(e.OriginKind), e.Type, string(e.Priority), e.OriginAddress, e.ConversationID,
		nullable(e.TriggerMessageID), nullable(e.ReporterName), nullable(e.ReporterRole), e.Reason, e.NeededDescription,
		string(snapshot), string(payload), nullable(e.RequestedDecision), string(allowed), string(e.State),
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	return nil
}

// Get retrieves an escalation by tenant and id.
func (s *Store) Get(ctx context.Context, tenantID, id string) (*core.Escalation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+escalationColumns+` FROM escalations WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	rec, err := scanEscalation(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get escalation: %w", err)
	}
	return rec, nil
}

// FindOpen returns the open escalation for (tenant, conversation, type).
func (s *Store) FindOpen(ctx context.Context, tenantID, conversationID, escType string) (*core.Escalation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+escalationColumns+` FROM escalations
		WHERE tenant_id = ? AND conversation_id = ? AND type = ?
			AND state IN ('PAUSED', 'AWAITING_CLARIFICATION', 'IN_AUTHORITY')
		LIMIT 1`,
		tenantID, conversationID, escType,
	)
	rec, err := scanEscalation(row)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open escalation: %w", err)
	}
	return rec, nil
}

// ListOpen returns all open escalations for the tenant, newest first.
func (s *Store) ListOpen(ctx context.Context, tenantID string) ([]*core.Escalation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+escalationColumns+` FROM escalations
		WHERE tenant_id = ? AND state IN ('PAUSED', 'AWAITING_CLARIFICATION', 'IN_AUTHORITY')
		ORDER BY created_at DESC, id`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list open escalations: %w", err)
	}
	defer rows.Close()

	return collectEscalations(rows)
}

// List returns tenant escalations matching the filters, newest first.
func (s *Store) List(ctx context.Context, tenantID string, f core.EscalationFilters) ([]*core.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE tenant_id = ?`
	args := []any{tenantID}

	if f.State != "" {
		query += " AND state = ?"
		args = append(args, string(f.State))
	}
	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, f.Type)
	}
	if f.OriginKind != "" {
		query += " AND origin_kind = ?"
		args = append(args, string(f.OriginKind))
	}
	if !f.IncludeArchived {
		query += " AND archived = 0"
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	defer rows.Close()

	return collectEscalations(rows)
}

// Transition applies the CAS state change from → to.
func (s *Store) Transition(ctx context.Context, tenantID, id string, from, to core.State) (*core.Escalation, error) {
	if err := s.casUpdate(ctx, tenantID, id, from, to,
		`UPDATE escalations SET state = ?, updated_at = ? WHERE tenant_id = ? AND id = ? AND state = ?`,
		string(to), time.Now().UTC(), tenantID, id, string(from),
	); err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Resolve records the decision and moves IN_AUTHORITY → RESOLVED.
func (s *Store) Resolve(ctx context.Context, tenantID, id string, d core.Decision) (*core.Escalation, error) {
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	if err := s.casUpdate(ctx, tenantID, id, core.StateInAuthority, core.StateResolved,
		`UPDATE escalations SET state = ?, decision_action = ?, decision_instruction = ?,
			decision_resolver = ?, decision_intent_clear = ?, decided_at = ?,
			resolved_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND state = ?`,
		string(core.StateResolved), d.Action, nullable(d.Instruction),
		d.ResolverAddress, boolInt(d.IntentClear), d.DecidedAt,
		d.DecidedAt, time.Now().UTC(),
		tenantID, id, string(core.StateInAuthority),
	); err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// MarkResumed moves RESOLVED → RESUMED. The decision guard rides in the
// WHERE clause: a record without a recorded decision never matches.
func (s *Store) MarkResumed(ctx context.Context, tenantID, id string) (*core.Escalation, error) {
	now := time.Now().UTC()
	if err := s.casUpdate(ctx, tenantID, id, core.StateResolved, core.StateResumed,
		`UPDATE escalations SET state = ?, resumed_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND state = ? AND decision_action IS NOT NULL`,
		string(core.StateResumed), now, now,
		tenantID, id, string(core.StateResolved),
	); err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID, id)
}

// Fail moves any non-terminal record to FAILED with a reason.
func (s *Store) Fail(ctx context.Context, tenantID, id, reason string) (*core.Escalation, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET state = ?, failure_reason = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND state NOT IN ('RESUMED', 'FAILED')`,
		string(core.StateFailed), reason, now, tenantID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fail escalation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, s.staleOrNotFound(ctx, tenantID, id, "", core.StateFailed)
	}
	return s.Get(ctx, tenantID, id)
}

// Archive flags a record as archived. Records are never deleted.
func (s *Store) Archive(ctx context.Context, tenantID, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET archived = 1, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		time.Now().UTC(), tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive escalation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// casUpdate runs the guarded UPDATE, translating a zero-row result into
// ErrNotFound or *StaleStateError depending on whether the record exists.
func (s *Store) casUpdate(ctx context.Context, tenantID, id string, from, to core.State, query string, args ...any) error {
	if !core.CanTransition(from, to) {
		actual := from
		if rec, err := s.Get(ctx, tenantID, id); err == nil {
			actual = rec.State
		}
		return &core.StaleStateError{EscalationID: id, From: from, To: to, Actual: actual}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to transition escalation: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return s.staleOrNotFound(ctx, tenantID, id, from, to)
	}
	return nil
}

func (s *Store) staleOrNotFound(ctx context.Context, tenantID, id string, from, to core.State) error {
	rec, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return core.ErrNotFound
	}
	return &core.StaleStateError{EscalationID: id, From: from, To: to, Actual: rec.State}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEscalation(row rowScanner) (*core.Escalation, error) {
	var (
		rec              core.Escalation
		originKind       string
		priority         string
		state            string
		triggerMessageID sql.NullString
		reporterName     sql.NullString
		reporterRole     sql.NullString
		snapshot         sql.NullString
		payload          sql.NullString
		requested        sql.NullString
		allowed          sql.NullString
		decisionAction   sql.NullString
		decisionInstr    sql.NullString
		decisionResolver sql.NullString
		decisionClear    sql.NullInt64
		decidedAt        sql.NullTime
		failureReason    sql.NullString
		resolvedAt       sql.NullTime
		resumedAt        sql.NullTime
		archived         int
	)

	err := row.Scan(
		&rec.ID, &rec.TenantID, &originKind, &rec.Type, &priority, &rec.OriginAddress, &rec.ConversationID,
		&triggerMessageID, &reporterName, &reporterRole, &rec.Reason, &rec.NeededDescription,
		&snapshot, &payload, &requested, &allowed, &state,
		&decisionAction, &decisionInstr, &decisionResolver, &decisionClear, &decidedAt,
		&failureReason, &rec.CreatedAt, &rec.UpdatedAt, &resolvedAt, &resumedAt, &archived,
	)
	if err != nil {
		return nil, err
	}

	rec.OriginKind = core.AgentKind(originKind)
	rec.Priority = core.Priority(priority)
	rec.State = core.State(state)
	rec.TriggerMessageID = triggerMessageID.String
	rec.ReporterName = reporterName.String
	rec.ReporterRole = reporterRole.String
	rec.RequestedDecision = requested.String
	rec.FailureReason = failureReason.String
	rec.Archived = archived != 0

	if snapshot.Valid && snapshot.String != "" && snapshot.String != "null" {
		if err := json.Unmarshal([]byte(snapshot.String), &rec.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
	}
	if payload.Valid && payload.String != "" && payload.String != "null" {
		if err := json.Unmarshal([]byte(payload.String), &rec.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
	}
	if allowed.Valid && allowed.String != "" && allowed.String != "null" {
		if err := json.Unmarshal([]byte(allowed.String), &rec.AllowedActions); err != nil {
			return nil, fmt.Errorf("failed to decode allowed actions: %w", err)
		}
	}
	if decisionAction.Valid {
		rec.Decision = &core.Decision{
			Action:          decisionAction.String,
			Instruction:     decisionInstr.String,
			ResolverAddress: decisionResolver.String,
			IntentClear:     decisionClear.Valid && decisionClear.Int64 != 0,
		}
		if decidedAt.Valid {
			rec.Decision.DecidedAt = decidedAt.Time
		}
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		rec.ResolvedAt = &t
	}
	if resumedAt.Valid {
		t := resumedAt.Time
		rec.ResumedAt = &t
	}

	return &rec, nil
}

func collectEscalations(rows *sql.Rows) ([]*core.Escalation, error) {
	var res []*core.Escalation
	for rows.Next() {
		rec, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Compile-time interface check.
var _ core.EscalationStore = (*Store)(nil)
