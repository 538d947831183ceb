// Package generation tracks background question-set generation jobs.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/examiz/internal/session"
)

var (
	// ErrGenerationFailed wraps every job failure.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrBusy is returned when starting a job while one is running.
	ErrBusy = errors.New("a generation job is already running")

	// ErrNoJob is returned by Wait when no job was started.
	ErrNoJob = errors.New("no generation job")
)

// Generator produces a question set for a topic. The HTTP client's
// GenerateQuestions satisfies it.
type Generator interface {
	GenerateQuestions(ctx context.Context, topic string, count int) ([]session.Question, error)
}

// SuccessFunc receives a finished job's questions, typically to seed a
// new session. An error fails the job.
type SuccessFunc func(ctx context.Context, topic string, questions []session.Question) error

// Phase is the job lifecycle.
type Phase int

const (
	Idle Phase = iota
	Connecting
	InProgress
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case InProgress:
		return "in_progress"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Active reports whether a job is running.
func (p Phase) Active() bool {
	return p == Connecting || p == InProgress
}

// Status is a snapshot of the poller.
type Status struct {
	Phase     Phase
	JobID     string
	Topic     string
	Count     int
	Stage     string // InProgress only; cosmetic
	Questions []session.Question
	Message   string // Failed only
	StartedAt time.Time
}

// DefaultStageInterval is how often the cosmetic stage message advances.
const DefaultStageInterval = 15 * time.Second

// ConnectingMessage is shown before the job reaches the generator.
const ConnectingMessage = "Connecting to the question service..."

// DefaultStages are the cosmetic InProgress messages, in order. The last
// one stays up until the job ends.
var DefaultStages = []string{
	"Analyzing the topic...",
	"Writing questions...",
	"Formatting questions...",
	"Still working, please wait...",
	"Almost done...",
}

// Option configures a Poller.
type Option func(*Poller)

// WithStageInterval sets the stage ticker period.
func WithStageInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithStages replaces the stage messages.
func WithStages(stages ...string) Option {
	return func(p *Poller) { p.stages = stages }
}

// WithOnSuccess sets the hook run when a single job succeeds.
func WithOnSuccess(fn SuccessFunc) Option {
	return func(p *Poller) { p.onSuccess = fn }
}

// WithNotify registers a callback for every status change. It is called
// without the poller's lock held, from the job goroutine.
func WithNotify(fn func(Status)) Option {
	return func(p *Poller) { p.notify = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// Poller runs at most one generation job at a time in the background.
type Poller struct {
	gen       Generator
	interval  time.Duration
	stages    []string
	onSuccess SuccessFunc
	notify    func(Status)
	logger    *slog.Logger

	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates an idle poller.
func NewPoller(gen Generator, opts ...Option) *Poller {
	p := &Poller{
		gen:      gen,
		interval: DefaultStageInterval,
		stages:   DefaultStages,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Status returns the current status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Start launches a job and returns its ID without waiting. The job
// outlives ctx's deadline only if ctx has none; cancel it with Cancel.
func (p *Poller) Start(ctx context.Context, topic string, count int) (string, error) {
	return p.start(ctx, topic, count, p.onSuccess)
}

func (p *Poller) start(ctx context.Context, topic string, count int, onSuccess SuccessFunc) (string, error) {
	p.mu.Lock()
	if p.status.Phase.Active() {
		p.mu.Unlock()
		return "", ErrBusy
	}
	jobCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	p.status = Status{
		Phase:     Connecting,
		JobID:     id,
		Topic:     topic,
		Count:     count,
		Stage:     ConnectingMessage,
		StartedAt: time.Now(),
	}
	p.cancel = cancel
	done := make(chan struct{})
	p.done = done
	st := p.status
	p.mu.Unlock()

	p.emit(st)
	go p.run(jobCtx, cancel, id, onSuccess, done)
	return id, nil
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, id string, onSuccess SuccessFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	st, ok := p.update(id, func(s *Status) {
		s.Phase = InProgress
		if len(p.stages) > 0 {
			s.Stage = p.stages[0]
		}
	})
	if !ok {
		return
	}
	p.emit(st)

	tickDone := make(chan struct{})
	go p.tick(id, tickDone)

	qs, err := p.gen.GenerateQuestions(ctx, st.Topic, st.Count)
	if err == nil && len(qs) == 0 {
		err = errors.New("no questions returned")
	}
	if err == nil && onSuccess != nil {
		if !p.current(id) {
			close(tickDone)
			p.logger.Debug("generation result discarded", "job_id", id)
			return
		}
		err = onSuccess(ctx, st.Topic, qs)
	}
	close(tickDone)

	st, ok = p.update(id, func(s *Status) {
		s.Stage = ""
		if err != nil {
			s.Phase = Failed
			s.Message = err.Error()
			return
		}
		s.Phase = Succeeded
		s.Questions = qs
	})
	if !ok {
		p.logger.Debug("generation result discarded", "job_id", id, "err", err)
		return
	}
	if err != nil {
		p.logger.Warn("generation failed", "job_id", id, "topic", st.Topic, "err", err)
	} else {
		p.logger.Info("generation succeeded", "job_id", id, "topic", st.Topic, "questions", len(qs))
	}
	p.emit(st)
}

// tick advances the cosmetic stage message until stop closes.
func (p *Poller) tick(id string, stop <-chan struct{}) {
	if p.interval <= 0 || len(p.stages) < 2 {
		return
	}
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for i := 1; i < len(p.stages); i++ {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		stage := p.stages[i]
		advanced := false
		st, ok := p.update(id, func(s *Status) {
			if s.Phase == InProgress {
				s.Stage = stage
				advanced = true
			}
		})
		if !ok || !advanced {
			return
		}
		p.emit(st)
	}
}

// update applies fn if id is still the current job.
func (p *Poller) update(id string, fn func(*Status)) (Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status.JobID != id {
		return Status{}, false
	}
	fn(&p.status)
	return p.status, true
}

// current reports whether id is the running job.
func (p *Poller) current(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.JobID == id && p.status.Phase.Active()
}

func (p *Poller) emit(st Status) {
	if p.notify != nil {
		p.notify(st)
	}
}

// Cancel abandons the running job and returns to Idle. A result that
// arrives later is discarded.
func (p *Poller) Cancel() {
	p.mu.Lock()
	if !p.status.Phase.Active() {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.status = Status{}
	p.mu.Unlock()

	cancel()
	p.emit(Status{})
}

// Clear dismisses a finished job's status.
func (p *Poller) Clear() {
	p.mu.Lock()
	if p.status.Phase.Active() {
		p.mu.Unlock()
		return
	}
	p.status = Status{}
	p.mu.Unlock()
	p.emit(Status{})
}

// Wait blocks until the current job ends and returns its final status.
// A failed job returns an error wrapping ErrGenerationFailed.
func (p *Poller) Wait(ctx context.Context) (Status, error) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return Status{}, ErrNoJob
	}
	select {
	case <-done:
	case <-ctx.Done():
		return p.Status(), ctx.Err()
	}
	st := p.Status()
	if st.Phase == Failed {
		return st, fmt.Errorf("%w: %s", ErrGenerationFailed, st.Message)
	}
	return st, nil
}
