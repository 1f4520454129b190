package pending

import (
	"context"
	"sync"
	"time"

	"github.com/jun/policydraft/internal/model"
)

// MemoryGuard implements Guard with an in-process map.
type MemoryGuard struct {
	ops map[string]*model.PendingOperation
	mu  sync.Mutex
	ttl time.Duration
}

// NewMemoryGuard creates a MemoryGuard. A non-positive ttl selects DefaultTTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{
		ops: make(map[string]*model.PendingOperation),
		ttl: ttl,
	}
}

func (g *MemoryGuard) Begin(ctx context.Context, sessionID string, kind model.OperationKind) (*model.PendingOperation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := opKey(sessionID, kind)
	if existing, ok := g.ops[key]; ok && existing.ExpiresAt > time.Now().Unix() {
		return nil, ErrBusy
	}

	op := newOperation(sessionID, kind, g.ttl)
	stored := op
	g.ops[key] = &stored
	return &op, nil
}

func (g *MemoryGuard) End(ctx context.Context, op *model.PendingOperation) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := opKey(op.SessionID, op.Kind)
	if existing, ok := g.ops[key]; ok && existing.Owner == op.Owner {
		delete(g.ops, key)
	}
	return nil
}

func (g *MemoryGuard) TTL() time.Duration {
	return g.ttl
}

func (g *MemoryGuard) Status(ctx context.Context, sessionID string, kind model.OperationKind) (*model.PendingOperation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.ops[opKey(sessionID, kind)]
	if !ok || existing.ExpiresAt <= time.Now().Unix() {
		return nil, nil
	}
	op := *existing
	return &op, nil
}
