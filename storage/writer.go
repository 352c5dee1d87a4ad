package storage

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"quadplan/domain"
)

type saver interface {
	SaveSnapshot(ctx context.Context, scope string, snap domain.Snapshot) error
}

type saveJob struct {
	scope string
	snap  domain.Snapshot
}

// WriterConfig tunes the background save pool.
type WriterConfig struct {
	Workers        int
	Buffer         int
	SaveTimeout    time.Duration
	HandoffTimeout time.Duration
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 60 * time.Second
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	return c
}

// Writer saves snapshots in the background. Schedule never blocks the caller
// beyond a short handoff window; a full queue drops the write and reports
// false, leaving the in-memory state authoritative.
type Writer struct {
	jobs    chan saveJob
	cfg     WriterConfig
	logger  *log.Logger
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool
}

// NewWriter starts the worker pool.
func NewWriter(store saver, cfg WriterConfig, logger *log.Logger) *Writer {
	if store == nil {
		panic("storage.NewWriter: store is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	cfg = cfg.withDefaults()

	w := &Writer{
		jobs:   make(chan saveJob, cfg.Buffer),
		cfg:    cfg,
		logger: logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		w.wg.Add(1)
		go w.worker(store, i)
	}
	logger.Infof("snapshot writer started, workers: %d, buffer: %d, timeout: %v, handoff: %v",
		cfg.Workers, cfg.Buffer, cfg.SaveTimeout, cfg.HandoffTimeout)
	return w
}

func (w *Writer) worker(store saver, id int) {
	defer w.wg.Done()
	for j := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SaveTimeout)
		err := store.SaveSnapshot(ctx, j.scope, j.snap)
		cancel()
		if err != nil {
			w.logger.Errorf("snapshot save failed, err: %v, scope: %s, worker: %d", err, j.scope, id)
		}
	}
}

// Schedule queues a snapshot write. Returns false when the pool is closed or
// the queue stayed full past the handoff window.
func (w *Writer) Schedule(scope string, snap domain.Snapshot) bool {
	job := saveJob{scope: scope, snap: snap}

	if ok, closed := w.trySendNonBlocking(job); closed {
		return false
	} else if ok {
		return true
	}

	if w.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(w.cfg.HandoffTimeout)
	defer timer.Stop()

	ok, _ := w.sendWithTimer(job, timer.C)
	return ok
}

// Close stops accepting writes and waits for queued saves to finish.
func (w *Writer) Close() {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.closeMu.Unlock()
	w.wg.Wait()
}

func (w *Writer) trySendNonBlocking(job saveJob) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case w.jobs <- job:
		return true, false
	default:
		return false, false
	}
}

func (w *Writer) sendWithTimer(job saveJob, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case w.jobs <- job:
		return true, false
	case <-timer:
		return false, false
	}
}
