package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	local := &Candidate{Snapshot: Snapshot{Topic: "local"}, UpdatedAt: t0}
	remote := &Candidate{Snapshot: Snapshot{Topic: "remote"}, UpdatedAt: t0}
	newer := &Candidate{Snapshot: Snapshot{Topic: "remote"}, UpdatedAt: t0.Add(time.Second)}
	older := &Candidate{Snapshot: Snapshot{Topic: "remote"}, UpdatedAt: t0.Add(-time.Second)}

	tests := []struct {
		name     string
		local    *Candidate
		remote   *Candidate
		wantSide Side
		wantErr  error
	}{
		{name: "both absent", wantSide: SideNone, wantErr: ErrNoActiveSession},
		{name: "local only", local: local, wantSide: SideLocal},
		{name: "remote only", remote: remote, wantSide: SideRemote},
		{name: "remote newer", local: local, remote: newer, wantSide: SideRemote},
		{name: "remote older", local: local, remote: older, wantSide: SideLocal},
		{name: "tie favors local", local: local, remote: remote, wantSide: SideLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, side, err := Resolve(tt.local, tt.remote)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if side != tt.wantSide {
				t.Errorf("side = %v, want %v", side, tt.wantSide)
			}
			switch side {
			case SideLocal:
				if got != tt.local {
					t.Error("winner is not the local candidate")
				}
			case SideRemote:
				if got != tt.remote {
					t.Error("winner is not the remote candidate")
				}
			}
		})
	}
}

func newTestReconciler(local *memLocal, remote *fakeBackend) *Reconciler {
	if remote == nil {
		return NewReconciler(local, nil, WithClock(fixedClock()))
	}
	return NewReconciler(local, remote, WithClock(fixedClock()))
}

func TestLoad_NoSession(t *testing.T) {
	rec := newTestReconciler(&memLocal{}, newFakeBackend())
	defer rec.Close()

	if _, err := rec.Load(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestLoad_RemoteNewerOverwritesLocal(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	local := &memLocal{state: &State{
		Snapshot:  Snapshot{Topic: "old", Questions: testQuestions(2)},
		UpdatedAt: t0,
	}}
	backend := newFakeBackend()
	backend.session = &State{
		Snapshot:  Snapshot{Topic: "new", Questions: testQuestions(3), CurrentIndex: 2},
		UpdatedAt: t0.Add(time.Minute),
	}
	rec := newTestReconciler(local, backend)
	defer rec.Close()

	st, err := rec.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Topic != "new" || st.CurrentIndex != 2 {
		t.Errorf("loaded %q at %d, want new at 2", st.Topic, st.CurrentIndex)
	}
	if got := local.stored(); got == nil || got.Topic != "new" {
		t.Errorf("local = %+v, want overwritten with remote", got)
	}
	if !st.UpdatedAt.After(t0.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v, want after the remote stamp", st.UpdatedAt)
	}
}

func TestLoad_LocalOnlyPushesRemote(t *testing.T) {
	ctx := context.Background()
	local := &memLocal{state: &State{Snapshot: Snapshot{Topic: "mine", Questions: testQuestions(1)}}}
	backend := newFakeBackend()
	rec := newTestReconciler(local, backend)
	defer rec.Close()

	if _, err := rec.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := backend.remoteSession(); got == nil || got.Topic != "mine" {
		t.Errorf("remote = %+v, want local session", got)
	}
}

func TestLoad_MalformedLocalTreatedAsAbsent(t *testing.T) {
	local := &memLocal{loadErr: fmt.Errorf("%w: bad json", ErrMalformedState)}
	backend := newFakeBackend()
	backend.session = &State{Snapshot: Snapshot{Topic: "remote", Questions: testQuestions(1)}}
	rec := newTestReconciler(local, backend)
	defer rec.Close()

	st, err := rec.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Topic != "remote" {
		t.Errorf("Topic = %q, want remote", st.Topic)
	}
}

func TestLoad_RemoteErrorFallsBackToLocal(t *testing.T) {
	local := &memLocal{state: &State{Snapshot: Snapshot{Topic: "mine", Questions: testQuestions(1)}}}
	backend := newFakeBackend()
	backend.getErr = errBoom
	rec := newTestReconciler(local, backend)
	defer rec.Close()

	st, err := rec.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Topic != "mine" {
		t.Errorf("Topic = %q, want mine", st.Topic)
	}
}

func TestLoad_EmptyQuestionsIsAbsent(t *testing.T) {
	local := &memLocal{state: &State{Snapshot: Snapshot{Topic: "empty"}}}
	rec := newTestReconciler(local, nil)
	defer rec.Close()

	if _, err := rec.Load(context.Background()); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
}

func TestPush_StampsStrictlyIncrease(t *testing.T) {
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	local := &memLocal{}
	rec := NewReconciler(local, nil, WithClock(func() time.Time { return frozen }))
	defer rec.Close()

	st, err := rec.Start(context.Background(), "t", testQuestions(1))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	first := st.UpdatedAt
	if err := rec.Push(context.Background(), st); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !st.UpdatedAt.After(first) {
		t.Errorf("second stamp %v not after first %v", st.UpdatedAt, first)
	}
}

func TestPush_Idempotent(t *testing.T) {
	ctx := context.Background()
	local := &memLocal{}
	remote := newFakeBackend()
	rec := newTestReconciler(local, remote)
	defer rec.Close()

	st, err := rec.Start(ctx, "t", testQuestions(2))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	correct := true
	st.Results[0] = &AnswerResult{QuestionID: 1, SelectedAnswer: "A", IsCorrect: &correct}

	if err := rec.Push(ctx, st); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	first := local.stored()
	firstRemote := remote.remoteSession().Snapshot

	if err := rec.Push(ctx, st); err != nil {
		t.Fatalf("second Push: %v", err)
	}
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	second := local.stored()

	if !reflect.DeepEqual(first.Snapshot, second.Snapshot) {
		t.Errorf("local payload changed:\n first %+v\nsecond %+v", first.Snapshot, second.Snapshot)
	}
	if got := remote.remoteSession().Snapshot; !reflect.DeepEqual(got, firstRemote) {
		t.Errorf("remote payload changed:\n first %+v\nsecond %+v", firstRemote, got)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want after %v", second.UpdatedAt, first.UpdatedAt)
	}
}

func TestPush_LocalFailureReported(t *testing.T) {
	local := &memLocal{saveErr: errBoom}
	rec := newTestReconciler(local, nil)
	defer rec.Close()

	st := &State{Snapshot: Snapshot{Questions: testQuestions(1), Results: make([]*AnswerResult, 1)}}
	if err := rec.Push(context.Background(), st); !errors.Is(err, errBoom) {
		t.Errorf("err = %v, want errBoom", err)
	}
	if !rec.Unsynced() {
		t.Error("Unsynced = false after a failed local save")
	}
}

func TestStart_EmptyQuestions(t *testing.T) {
	rec := newTestReconciler(&memLocal{}, nil)
	defer rec.Close()
	if _, err := rec.Start(context.Background(), "t", nil); !errors.Is(err, ErrEmptySession) {
		t.Errorf("err = %v, want ErrEmptySession", err)
	}
}

func TestTeardown_DeleteOrderedAfterPuts(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	local := &memLocal{}
	rec := newTestReconciler(local, backend)
	defer rec.Close()

	st, err := rec.Start(ctx, "t", testQuestions(2))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// These puts queue behind the gated one and get dropped by the delete.
	for i := 0; i < 3; i++ {
		st.CurrentIndex = i % 2
		if err := rec.Push(ctx, st); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	if err := rec.Teardown(ctx); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	close(backend.gate)
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ops := backend.opLog()
	if len(ops) == 0 || ops[len(ops)-1] != "delete" {
		t.Fatalf("ops = %v, want delete last", ops)
	}
	if backend.remoteSession() != nil {
		t.Error("remote session survived teardown")
	}
	if local.stored() != nil {
		t.Error("local session survived teardown")
	}
}

func TestSyncFailureMarksUnsynced(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.putErr = errBoom
	rec := newTestReconciler(&memLocal{}, backend)
	defer rec.Close()

	if _, err := rec.Start(ctx, "t", testQuestions(1)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !rec.Unsynced() {
		t.Error("Unsynced = false after a failed remote put")
	}
	if err := rec.SyncErr(); !errors.Is(err, ErrRemoteSyncFailed) {
		t.Errorf("SyncErr = %v, want ErrRemoteSyncFailed", err)
	}
}
