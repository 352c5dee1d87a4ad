package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"quadplan/domain"
)

type recordingSaver struct {
	mu     sync.Mutex
	scopes []string
	block  chan struct{}
}

func (r *recordingSaver) SaveSnapshot(ctx context.Context, scope string, snap domain.Snapshot) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scopes = append(r.scopes, scope)
	return nil
}

func (r *recordingSaver) saved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.scopes))
	copy(out, r.scopes)
	return out
}

func TestWriterSavesScheduledSnapshots(t *testing.T) {
	saver := &recordingSaver{}
	w := NewWriter(saver, WriterConfig{Workers: 2, Buffer: 8}, log.New())

	if !w.Schedule("alice", domain.Snapshot{}) {
		t.Fatalf("expected schedule to succeed")
	}
	if !w.Schedule("bob", domain.Snapshot{}) {
		t.Fatalf("expected schedule to succeed")
	}
	w.Close()

	got := saver.saved()
	if len(got) != 2 {
		t.Fatalf("expected 2 saves, got %#v", got)
	}
	seen := map[string]bool{}
	for _, scope := range got {
		seen[scope] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Fatalf("missing scopes in %#v", got)
	}
}

func TestWriterDropsWhenQueueFull(t *testing.T) {
	saver := &recordingSaver{block: make(chan struct{})}
	w := NewWriter(saver, WriterConfig{Workers: 1, Buffer: 1, HandoffTimeout: time.Millisecond}, log.New())

	// One job occupies the worker, one fills the buffer.
	w.Schedule("s1", domain.Snapshot{})
	w.Schedule("s2", domain.Snapshot{})

	// Give the worker a moment to pick up the first job so the buffer state
	// is deterministic, then overfill.
	deadline := time.Now().Add(time.Second)
	dropped := false
	for time.Now().Before(deadline) {
		if !w.Schedule("s3", domain.Snapshot{}) {
			dropped = true
			break
		}
	}
	if !dropped {
		t.Fatalf("expected a write to be dropped once the queue stayed full")
	}

	close(saver.block)
	w.Close()
}

func TestWriterScheduleAfterCloseReturnsFalse(t *testing.T) {
	saver := &recordingSaver{}
	w := NewWriter(saver, WriterConfig{Workers: 1, Buffer: 1}, log.New())
	w.Close()

	if w.Schedule("late", domain.Snapshot{}) {
		t.Fatalf("expected schedule after close to fail")
	}
}
