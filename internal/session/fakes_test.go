package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memLocal struct {
	mu      sync.Mutex
	state   *State
	loadErr error
	saveErr error
	saves   int
}

func (m *memLocal) Load(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return nil, nil
	}
	return &State{Snapshot: m.state.Snapshot.Clone(), UpdatedAt: m.state.UpdatedAt}, nil
}

func (m *memLocal) Save(ctx context.Context, snap Snapshot, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = &State{Snapshot: snap.Clone(), UpdatedAt: updatedAt}
	return nil
}

func (m *memLocal) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}

func (m *memLocal) stored() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// fakeBackend is an in-memory Backend that records every call.
type fakeBackend struct {
	mu      sync.Mutex
	session *State
	ops     []string
	getErr  error
	putErr  error
	now     func() time.Time

	// gate, when set, blocks PutSession until it is closed.
	gate chan struct{}

	grade       func(id int64, selected string) (*GradeResult, error)
	gradeCalls  []gradeCall
	qualityErr  error
	qualities   []Quality
	deleteErr   error
	deleted     []int64
	favorites   map[int64]bool
	finishErr   error
	finished    [][]AnswerResult
	finishCalls int
}

type gradeCall struct {
	ID       int64
	Selected string
	Quality  *Quality
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		favorites: map[int64]bool{},
		now:       func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func (f *fakeBackend) GetSession(ctx context.Context, key string) (*State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.session == nil {
		return nil, nil
	}
	return &State{Snapshot: f.session.Snapshot.Clone(), UpdatedAt: f.session.UpdatedAt}, nil
}

func (f *fakeBackend) PutSession(ctx context.Context, key string, snap Snapshot) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "put")
	if f.putErr != nil {
		return f.putErr
	}
	f.session = &State{Snapshot: snap.Clone(), UpdatedAt: f.now()}
	return nil
}

func (f *fakeBackend) DeleteSession(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "delete")
	f.session = nil
	return nil
}

func (f *fakeBackend) SubmitAnswer(ctx context.Context, id int64, selected string, quality *Quality) (*GradeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gradeCalls = append(f.gradeCalls, gradeCall{ID: id, Selected: selected, Quality: quality})
	if f.grade != nil {
		return f.grade(id, selected)
	}
	return &GradeResult{IsCorrect: selected == "A", CorrectAnswer: "A", Explanation: "because"}, nil
}

func (f *fakeBackend) SubmitQuality(ctx context.Context, id int64, q Quality) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.qualityErr != nil {
		return f.qualityErr
	}
	f.qualities = append(f.qualities, q)
	return nil
}

func (f *fakeBackend) FinishSession(ctx context.Context, topic string, results []AnswerResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishCalls++
	if f.finishErr != nil {
		return f.finishErr
	}
	f.finished = append(f.finished, results)
	return nil
}

func (f *fakeBackend) DeleteQuestion(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) ToggleFavorite(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.favorites[id] = !f.favorites[id]
	return f.favorites[id], nil
}

func (f *fakeBackend) remoteSession() *State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeBackend) opLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

var errBoom = errors.New("boom")

func testQuestions(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			ID:             int64(i + 1),
			Content:        "question",
			Options:        Options{{Key: "A", Text: "one"}, {Key: "B", Text: "two"}},
			KnowledgePoint: "grammar",
		}
	}
	return qs
}

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}
