package api

import (
	"context"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"quadplan/domain"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls map[string][]domain.Task
}

func (n *recordingNotifier) NotifyReminders(ctx context.Context, scope string, tasks []domain.Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = make(map[string][]domain.Task)
	}
	n.calls[scope] = append(n.calls[scope], tasks...)
	return nil
}

func (n *recordingNotifier) tasksFor(scope string) []domain.Task {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[scope]
}

func TestReminderPollerNotifiesDueTasks(t *testing.T) {
	base := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	snap := seededSnapshot()
	snap.Tasks[0].ReminderAt = base.Add(30 * time.Second).UnixMilli()

	sessions := newTestSessions(&mockStore{snap: snap}, &mockWriter{})
	if _, err := sessions.Acquire(context.Background(), "user"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	notifier := &recordingNotifier{}
	poller := NewReminderPoller(sessions, notifier, time.Minute, log.New())

	// First scan anchors the window, second picks up the reminder.
	poller.now = func() time.Time { return base }
	poller.scanOnce(context.Background())
	if got := notifier.tasksFor("user"); got != nil {
		t.Fatalf("first scan must only anchor, got %#v", got)
	}

	poller.now = func() time.Time { return base.Add(time.Minute) }
	poller.scanOnce(context.Background())

	got := notifier.tasksFor("user")
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("expected reminder for t1, got %#v", got)
	}

	// The window has been consumed; nothing fires again.
	poller.now = func() time.Time { return base.Add(2 * time.Minute) }
	poller.scanOnce(context.Background())
	if got := notifier.tasksFor("user"); len(got) != 1 {
		t.Fatalf("expected no repeat notification, got %#v", got)
	}
}

func TestReminderPollerSkipsScopesWithoutEngines(t *testing.T) {
	sessions := newTestSessions(&mockStore{snap: seededSnapshot()}, &mockWriter{})
	notifier := &recordingNotifier{}
	poller := NewReminderPoller(sessions, notifier, time.Minute, log.New())

	poller.scanOnce(context.Background())

	if len(notifier.calls) != 0 {
		t.Fatalf("expected no notifications without loaded engines, got %#v", notifier.calls)
	}
}

func TestReminderPollerRunStopsOnCancel(t *testing.T) {
	sessions := newTestSessions(&mockStore{snap: seededSnapshot()}, &mockWriter{})
	poller := NewReminderPoller(sessions, &recordingNotifier{}, 10*time.Millisecond, log.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("poller did not stop after cancel")
	}
}
