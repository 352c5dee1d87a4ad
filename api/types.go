package api

import (
	"context"

	"quadplan/domain"
)

// SnapshotStore loads the persisted state of one user scope.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, scope string) (domain.Snapshot, error)
}

// SnapshotWriter schedules a best-effort background save. It reports false
// when the write could not be accepted; in-memory state stays authoritative
// either way.
type SnapshotWriter interface {
	Schedule(scope string, snap domain.Snapshot) bool
}

// Authenticator is implemented by types able to extract user scopes from
// Authorization headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of duplicate commands.
type Deduper interface {
	// AddMany records the idempotency keys and reports which were newly added.
	AddMany(ctx context.Context, userID string, keys []string) ([]bool, error)
}
