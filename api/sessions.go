package api

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"quadplan/engine"
)

// Sessions maps authenticated user scopes to their in-memory engines. An
// engine is loaded from the snapshot store on first use and kept for the
// lifetime of the process; the engine itself serializes its commands.
type Sessions struct {
	store  SnapshotStore
	writer SnapshotWriter
	logger *log.Logger

	mu      sync.Mutex
	engines map[string]*engine.Engine
}

// NewSessions creates the per-scope engine registry.
func NewSessions(store SnapshotStore, writer SnapshotWriter, logger *log.Logger) *Sessions {
	if store == nil {
		panic("api.NewSessions: snapshot store is nil")
	}
	return &Sessions{
		store:   store,
		writer:  writer,
		logger:  logger,
		engines: make(map[string]*engine.Engine),
	}
}

// Acquire returns the engine for a scope, loading its snapshot on first use.
// A transport failure loading the snapshot is returned; a missing or partly
// malformed snapshot is not an error, the engine starts from the repaired
// remainder.
func (s *Sessions) Acquire(ctx context.Context, scope string) (*engine.Engine, error) {
	s.mu.Lock()
	if eng, ok := s.engines[scope]; ok {
		s.mu.Unlock()
		return eng, nil
	}
	s.mu.Unlock()

	snap, err := s.store.LoadSnapshot(ctx, scope)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if eng, ok := s.engines[scope]; ok {
		// Lost the race against a concurrent first request for this scope.
		return eng, nil
	}
	eng := engine.New(snap)
	s.engines[scope] = eng
	return eng, nil
}

// Persist hands the scope's current snapshot to the background writer. A
// dropped or failed write is logged and otherwise ignored: the in-memory
// engine remains authoritative and nothing is rolled back.
func (s *Sessions) Persist(scope string) {
	s.mu.Lock()
	eng := s.engines[scope]
	s.mu.Unlock()
	if eng == nil {
		return
	}
	if s.writer == nil || !s.writer.Schedule(scope, eng.Snapshot()) {
		if s.logger != nil {
			s.logger.WithField("scope", scope).Warn("snapshot write dropped")
		}
	}
}

// Each visits every loaded engine. Used by the reminder poller; scopes that
// have never been loaded have no engine and are not scanned.
func (s *Sessions) Each(fn func(scope string, eng *engine.Engine)) {
	s.mu.Lock()
	scopes := make([]string, 0, len(s.engines))
	engines := make([]*engine.Engine, 0, len(s.engines))
	for scope, eng := range s.engines {
		scopes = append(scopes, scope)
		engines = append(engines, eng)
	}
	s.mu.Unlock()

	for i := range scopes {
		fn(scopes[i], engines[i])
	}
}
