package conversation

import (
	"context"
	"sync"

	"github.com/schoolmesh/escalation/core"
)

// InMemoryStore is a volatile ConversationStore keeping one append-only turn
// log per (tenant, address) pair. It is safe for concurrent access and best
// suited for tests or single-process deployments. Returned slices are copies
// to prevent external mutation of internal state.
//
// MaxTurnsPerLog bounds memory: once a log exceeds the cap, the oldest turns
// are dropped. Escalation snapshots are taken well inside the cap, so the
// sliding window semantics are unaffected.
type InMemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]core.Turn // tenantID+"\x00"+address -> turns, oldest first

	maxTurnsPerLog int
}

// Options configures the in-memory store.
type Options struct {
	// MaxTurnsPerLog caps retained history per conversation log.
	MaxTurnsPerLog int
}

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{MaxTurnsPerLog: 500}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		logs:           make(map[string][]core.Turn),
		maxTurnsPerLog: opts.MaxTurnsPerLog,
	}
}

func logKey(tenantID, address string) string { return tenantID + "\x00" + address }

// Append implements core.ConversationStore.
func (s *InMemoryStore) Append(_ context.Context, t core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := logKey(t.TenantID, t.Address)
	log := append(s.logs[key], t)
	if len(log) > s.maxTurnsPerLog {
		log = log[len(log)-s.maxTurnsPerLog:]
	}
	s.logs[key] = log

	return nil
}

// Recent implements core.ConversationStore returning up to n most recent
// turns in chronological order.
func (s *InMemoryStore) Recent(_ context.Context, tenantID, address string, n int) ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[logKey(tenantID, address)]
	if n > len(log) {
		n = len(log)
	}
	if n <= 0 {
		return []core.Turn{}, nil
	}

	res := make([]core.Turn, n)
	copy(res, log[len(log)-n:])
	return res, nil
}

// Compile-time interface check.
var _ core.ConversationStore = (*InMemoryStore)(nil)
