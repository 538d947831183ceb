package session

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultSessionKey is the cross-device key used when none is configured.
const DefaultSessionKey = "default"

// Side names which store a resolved session came from.
type Side int

const (
	SideNone Side = iota
	SideLocal
	SideRemote
)

func (s Side) String() string {
	switch s {
	case SideLocal:
		return "local"
	case SideRemote:
		return "remote"
	}
	return "none"
}

// Resolve picks the authoritative session from the two stores. A lone
// candidate wins; with two, the strictly later UpdatedAt wins and ties go
// to the local copy.
func Resolve(local, remote *Candidate) (*Candidate, Side, error) {
	switch {
	case local == nil && remote == nil:
		return nil, SideNone, ErrNoActiveSession
	case remote == nil:
		return local, SideLocal, nil
	case local == nil:
		return remote, SideRemote, nil
	}
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return remote, SideRemote, nil
	}
	return local, SideLocal, nil
}

// Reconciler keeps the local cache and the remote store converged on a
// single session. The local cache is written synchronously; remote writes
// are handed to a background syncer and never block the caller.
type Reconciler struct {
	local  LocalCache
	remote RemoteStore
	key    string
	now    func() time.Time
	logger *slog.Logger
	sync   *syncer

	mu        sync.Mutex
	lastStamp time.Time
	saveErr   error
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithSessionKey sets the remote session key.
func WithSessionKey(key string) ReconcilerOption {
	return func(r *Reconciler) { r.key = key }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// WithLogger sets the logger used for sync and load warnings.
func WithLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = l }
}

// NewReconciler creates a reconciler. remote may be nil, in which case the
// session lives only in the local cache.
func NewReconciler(local LocalCache, remote RemoteStore, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		local:  local,
		remote: remote,
		key:    DefaultSessionKey,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if remote != nil {
		r.sync = newSyncer(remote, r.key, DefaultSyncTimeout, r.logger)
	}
	return r
}

// Key returns the remote session key.
func (r *Reconciler) Key() string {
	return r.key
}

// Load reads both stores concurrently and returns the authoritative
// session. Read or parse failures on either side are logged and treated as
// an absent candidate. When the two stores disagree the winner is written
// back to both.
func (r *Reconciler) Load(ctx context.Context) (*State, error) {
	var local, remote *Candidate
	var g errgroup.Group
	g.Go(func() error {
		local = r.loadLocal(ctx)
		return nil
	})
	g.Go(func() error {
		remote = r.loadRemote(ctx)
		return nil
	})
	_ = g.Wait()

	winner, side, err := Resolve(local, remote)
	if err != nil {
		return nil, err
	}
	r.observe(winner.UpdatedAt)

	if converged(local, remote) {
		return winner, nil
	}
	r.logger.Debug("reconciling session stores", "winner", side.String(), "session_key", r.key)
	if err := r.Push(ctx, winner); err != nil {
		return nil, err
	}
	return winner, nil
}

func (r *Reconciler) loadLocal(ctx context.Context) *Candidate {
	st, err := r.local.Load(ctx)
	if err != nil {
		r.logger.Warn("ignoring local session", "err", err)
		return nil
	}
	if st == nil || !Normalize(&st.Snapshot) {
		return nil
	}
	return st
}

func (r *Reconciler) loadRemote(ctx context.Context) *Candidate {
	if r.remote == nil {
		return nil
	}
	st, err := r.remote.GetSession(ctx, r.key)
	if err != nil {
		r.logger.Warn("ignoring remote session", "session_key", r.key, "err", err)
		return nil
	}
	if st == nil || !Normalize(&st.Snapshot) {
		return nil
	}
	return st
}

// converged reports whether no write-back is needed after a load.
func converged(local, remote *Candidate) bool {
	if local == nil {
		return false
	}
	if remote == nil {
		// Offline or remote empty: the local copy is pushed up.
		return false
	}
	return reflect.DeepEqual(local.Snapshot, remote.Snapshot)
}

// Push persists st to the local cache, stamping it with a fresh UpdatedAt,
// and queues a remote write. Only a local failure is returned.
func (r *Reconciler) Push(ctx context.Context, st *State) error {
	stamp := r.stamp()
	snap := st.Snapshot.Clone()
	if err := r.local.Save(ctx, snap, stamp); err != nil {
		r.setSaveErr(err)
		return fmt.Errorf("save local session: %w", err)
	}
	r.setSaveErr(nil)
	st.UpdatedAt = stamp
	if r.sync != nil {
		r.sync.put(snap)
	}
	return nil
}

// Start replaces any stored session with a fresh one over questions.
func (r *Reconciler) Start(ctx context.Context, topic string, questions []Question) (*State, error) {
	st := &State{Snapshot: Snapshot{
		Topic:     topic,
		Questions: append([]Question(nil), questions...),
	}}
	if !Normalize(&st.Snapshot) {
		return nil, ErrEmptySession
	}
	if err := r.Push(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Teardown removes the session from both stores. The remote delete is
// queued behind any pending puts.
func (r *Reconciler) Teardown(ctx context.Context) error {
	if r.sync != nil {
		r.sync.delete()
	}
	if err := r.local.Clear(ctx); err != nil {
		return fmt.Errorf("clear local session: %w", err)
	}
	return nil
}

// Flush waits for queued remote writes to be attempted.
func (r *Reconciler) Flush(ctx context.Context) error {
	if r.sync == nil {
		return nil
	}
	return r.sync.flush(ctx)
}

// Unsynced reports whether progress exists that neither store is known to
// hold: a failed local save, or remote writes that are pending or failed.
func (r *Reconciler) Unsynced() bool {
	r.mu.Lock()
	saveErr := r.saveErr
	r.mu.Unlock()
	if saveErr != nil {
		return true
	}
	return r.sync != nil && r.sync.unsynced()
}

// SyncErr returns the error of the most recent remote write, if it failed.
func (r *Reconciler) SyncErr() error {
	if r.sync == nil {
		return nil
	}
	return r.sync.err()
}

// Close drains pending remote writes and stops the syncer.
func (r *Reconciler) Close() {
	if r.sync != nil {
		r.sync.close()
	}
}

// stamp returns a strictly increasing timestamp so that successive writes
// from this device always order after each other.
func (r *Reconciler) stamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	if !now.After(r.lastStamp) {
		now = r.lastStamp.Add(time.Millisecond)
	}
	r.lastStamp = now
	return now
}

func (r *Reconciler) observe(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.After(r.lastStamp) {
		r.lastStamp = t.UTC()
	}
}

func (r *Reconciler) setSaveErr(err error) {
	r.mu.Lock()
	r.saveErr = err
	r.mu.Unlock()
}
