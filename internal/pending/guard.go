// Package pending keeps per-control busy flags so that a user-triggered
// async action cannot be started twice while the first run is in flight.
package pending

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jun/policydraft/internal/model"
)

// DefaultTTL bounds how long a busy flag survives a call that never settles.
const DefaultTTL = 2 * time.Minute

// ErrBusy is returned by Begin when the same control is already in flight.
var ErrBusy = errors.New("operation already in progress")

// Guard manages busy flags keyed by workspace session and operation kind.
type Guard interface {
	// Begin marks the operation as in flight. It fails with ErrBusy if an
	// unexpired flag for the same session and kind exists.
	Begin(ctx context.Context, sessionID string, kind model.OperationKind) (*model.PendingOperation, error)

	// End clears the flag taken by op. A flag that has since been retaken by
	// another call, or that no longer exists, is left alone.
	End(ctx context.Context, op *model.PendingOperation) error

	// Status returns the live flag, or nil if the control is idle.
	Status(ctx context.Context, sessionID string, kind model.OperationKind) (*model.PendingOperation, error)

	// TTL is how long a flag is held before it can be retaken.
	TTL() time.Duration
}

func opKey(sessionID string, kind model.OperationKind) string {
	return sessionID + "#" + string(kind)
}

func newOperation(sessionID string, kind model.OperationKind, ttl time.Duration) model.PendingOperation {
	return model.PendingOperation{
		SessionID: sessionID,
		Kind:      kind,
		Key:       opKey(sessionID, kind),
		Owner:     uuid.NewString(),
		ExpiresAt: expiresAt(time.Now().Add(ttl)),
	}
}

// expiresAt rounds up to the next second so a flag never lapses before its ttl.
func expiresAt(deadline time.Time) int64 {
	exp := deadline.Unix()
	if deadline.Nanosecond() > 0 {
		exp++
	}
	return exp
}
