package generation

import (
	"context"
	"errors"
)

// BatchProgress is reported before each topic starts.
type BatchProgress struct {
	Current int // 1-based
	Total   int
	Topic   string
}

// TopicResult is the outcome of one topic in a batch.
type TopicResult struct {
	Topic     string
	Questions int
	Err       error
}

// BatchResult collects every topic's outcome.
type BatchResult struct {
	Results []TopicResult
}

// Succeeded counts topics that produced questions.
func (r BatchResult) Succeeded() int {
	n := 0
	for _, t := range r.Results {
		if t.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the topics that did not.
func (r BatchResult) Failed() []TopicResult {
	var out []TopicResult
	for _, t := range r.Results {
		if t.Err != nil {
			out = append(out, t)
		}
	}
	return out
}

// RunBatch generates each topic in turn. A failed topic is recorded and
// the batch continues. Batch jobs do not run the success hook: the
// questions land in the bank and no session is seeded. Cancelling ctx
// stops the batch; remaining topics are recorded with ctx's error.
func (p *Poller) RunBatch(ctx context.Context, topics []string, count int, progress func(BatchProgress)) BatchResult {
	var res BatchResult
	for i, topic := range topics {
		if err := ctx.Err(); err != nil {
			res.Results = append(res.Results, TopicResult{Topic: topic, Err: err})
			continue
		}
		if progress != nil {
			progress(BatchProgress{Current: i + 1, Total: len(topics), Topic: topic})
		}

		tr := TopicResult{Topic: topic}
		if _, err := p.start(ctx, topic, count, nil); err != nil {
			tr.Err = err
			res.Results = append(res.Results, tr)
			continue
		}
		st, err := p.Wait(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			p.Cancel()
			tr.Err = err
		case err != nil:
			tr.Err = err
		case st.Phase != Succeeded:
			// Cancelled from elsewhere.
			tr.Err = context.Canceled
		default:
			tr.Questions = len(st.Questions)
		}
		p.Clear()
		res.Results = append(res.Results, tr)
	}
	return res
}
