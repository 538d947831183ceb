package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abhisek/examiz/internal/questiongen"
	"github.com/abhisek/examiz/internal/remote"
	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/store"
)

// generateInto generates count questions on topic and stores them. Bank
// questions on the same knowledge point are passed to the generator so it
// avoids repeating them.
func generateInto(ctx context.Context, gen questiongen.Generator, questions store.QuestionRepo, topic string, count int) (*remote.GenerateResponse, error) {
	prior, err := questions.List(ctx, store.QuestionFilter{KnowledgePoint: topic, Limit: maxPriorQuestions})
	if err != nil {
		return nil, fmt.Errorf("list prior questions: %w", err)
	}
	in := questiongen.Input{
		Topic: topic,
		Count: count,
		Known: make(map[string]bool, len(prior)),
	}
	for _, q := range prior {
		in.Prior = append(in.Prior, q.Content)
		in.Known[session.ContentHash(q.Content, q.Options)] = true
	}

	batch, err := gen.Generate(ctx, in)
	if err != nil {
		return nil, err
	}
	saved, added, err := questions.Save(ctx, batch.Questions)
	if err != nil {
		return nil, fmt.Errorf("save questions: %w", err)
	}
	res := &remote.GenerateResponse{Questions: saved, Added: added}
	for _, r := range batch.Rejected {
		res.Rejected = append(res.Rejected, r.Error())
	}
	return res, nil
}

// AutoGen defaults.
const (
	DefaultAutoGenInterval  = 4 * time.Hour
	DefaultAutoGenThreshold = 10
	DefaultAutoGenCount     = 5
)

// AutoGen keeps every knowledge point stocked with unanswered questions.
type AutoGen struct {
	gen       questiongen.Generator
	questions store.QuestionRepo
	logger    *slog.Logger

	Interval  time.Duration
	Threshold int // top up points with fewer unanswered questions
	Count     int // questions generated per top-up
}

// NewAutoGen creates a top-up worker with the default settings.
func NewAutoGen(gen questiongen.Generator, st *store.Store, logger *slog.Logger) *AutoGen {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoGen{
		gen:       gen,
		questions: st.Questions(),
		logger:    logger,
		Interval:  DefaultAutoGenInterval,
		Threshold: DefaultAutoGenThreshold,
		Count:     DefaultAutoGenCount,
	}
}

// Run tops up immediately and then every Interval until ctx is done. A
// non-positive Interval runs at DefaultAutoGenInterval.
func (a *AutoGen) Run(ctx context.Context) {
	interval := a.Interval
	if interval <= 0 {
		a.logger.Warn("autogen interval not positive, using default", "interval", interval, "default", DefaultAutoGenInterval)
		interval = DefaultAutoGenInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
			a.logger.Warn("autogen pass failed", "op", "autogen", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RunOnce tops up every knowledge point below the threshold and returns
// the number of questions added. A failing point is logged and skipped.
func (a *AutoGen) RunOnce(ctx context.Context) (int, error) {
	stats, err := a.questions.KnowledgePointStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("knowledge point stats: %w", err)
	}
	total := 0
	for _, st := range stats {
		if st.Unanswered >= a.Threshold {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := generateInto(ctx, a.gen, a.questions, st.Name, a.Count)
		if err != nil {
			a.logger.Warn("autogen top-up failed", "op", "autogen", "knowledge_point", st.Name, "err", err)
			continue
		}
		a.logger.Info("autogen topped up", "knowledge_point", st.Name, "added", res.Added)
		total += res.Added
	}
	return total, nil
}
