package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSyncTimeout bounds a single remote write issued by the syncer.
const DefaultSyncTimeout = 10 * time.Second

type syncKind int

const (
	syncPut syncKind = iota
	syncDelete
)

func (k syncKind) String() string {
	if k == syncDelete {
		return "delete"
	}
	return "put"
}

type syncOp struct {
	kind syncKind
	snap Snapshot
}

// syncer mirrors session writes to the remote store in the background.
// A single worker applies operations in submission order. Queued puts are
// coalesced, and a delete discards every put queued before it, so a stale
// put can never land after the delete that ended the session.
type syncer struct {
	remote  RemoteStore
	key     string
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	queue   []syncOp
	busy    bool
	idle    chan struct{}
	lastErr error
	closed  bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newSyncer(remote RemoteStore, key string, timeout time.Duration, logger *slog.Logger) *syncer {
	idle := make(chan struct{})
	close(idle)
	s := &syncer{
		remote:  remote,
		key:     key,
		timeout: timeout,
		logger:  logger,
		idle:    idle,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.processLoop()
	return s
}

func (s *syncer) put(snap Snapshot) {
	s.enqueue(syncOp{kind: syncPut, snap: snap})
}

func (s *syncer) delete() {
	s.enqueue(syncOp{kind: syncDelete})
}

func (s *syncer) enqueue(op syncOp) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if !s.busy {
		s.busy = true
		s.idle = make(chan struct{})
	}
	switch {
	case op.kind == syncDelete:
		s.queue = append(s.queue[:0], op)
	case len(s.queue) > 0 && s.queue[len(s.queue)-1].kind == syncPut:
		s.queue[len(s.queue)-1] = op
	default:
		s.queue = append(s.queue, op)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest operation. When the queue is empty it marks the
// syncer idle in the same critical section, so enqueue and the idle
// transition cannot interleave.
func (s *syncer) next() (syncOp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		if s.busy {
			s.busy = false
			close(s.idle)
		}
		return syncOp{}, false
	}
	op := s.queue[0]
	s.queue = s.queue[1:]
	return op, true
}

func (s *syncer) processLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.stop:
			s.drain()
			return
		}
	}
}

func (s *syncer) drain() {
	for {
		op, ok := s.next()
		if !ok {
			return
		}
		s.run(op)
	}
}

func (s *syncer) run(op syncOp) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch op.kind {
	case syncPut:
		err = s.remote.PutSession(ctx, s.key, op.snap)
	case syncDelete:
		err = s.remote.DeleteSession(ctx, s.key)
	}

	s.mu.Lock()
	if err != nil {
		s.lastErr = fmt.Errorf("%w: %s: %w", ErrRemoteSyncFailed, op.kind, err)
	} else {
		s.lastErr = nil
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("remote session sync failed",
			"op", op.kind.String(),
			"session_key", s.key,
			"err", err)
	}
}

// flush waits until every queued operation has been attempted.
func (s *syncer) flush(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// unsynced reports whether the remote copy may lag behind the local one.
func (s *syncer) unsynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy || s.lastErr != nil
}

func (s *syncer) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// close drains pending operations and stops the worker.
func (s *syncer) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.stop)
	<-s.done
}
