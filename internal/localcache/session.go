package localcache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/abhisek/examiz/internal/session"
)

// Keys under which the live session is stored.
const (
	KeyQuestions = "currentQuestions"
	KeyTopic     = "currentTopic"
	KeyResults   = "currentResults"
	KeyIndex     = "currentIndex"
	KeyUpdatedAt = "sessionUpdatedAt"
)

var sessionKeys = []string{KeyQuestions, KeyTopic, KeyResults, KeyIndex, KeyUpdatedAt}

// SessionCache adapts a Cache to session.LocalCache.
type SessionCache struct {
	kv *Cache
}

// Sessions returns the session view of the cache.
func (c *Cache) Sessions() *SessionCache {
	return &SessionCache{kv: c}
}

// Load returns nil when no questions are stored. Missing results, index
// or timestamp keys are tolerated as written by older clients; any key
// that is present but unparseable makes the whole session malformed.
func (s *SessionCache) Load(ctx context.Context) (*session.State, error) {
	vals, err := s.kv.GetMany(ctx, sessionKeys...)
	if err != nil {
		return nil, err
	}
	raw, ok := vals[KeyQuestions]
	if !ok {
		return nil, nil
	}

	st := &session.State{}
	if err := json.Unmarshal([]byte(raw), &st.Questions); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", session.ErrMalformedState, KeyQuestions, err)
	}
	st.Topic = vals[KeyTopic]
	if v, ok := vals[KeyResults]; ok {
		if err := json.Unmarshal([]byte(v), &st.Results); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", session.ErrMalformedState, KeyResults, err)
		}
	}
	if v, ok := vals[KeyIndex]; ok {
		if st.CurrentIndex, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", session.ErrMalformedState, KeyIndex, err)
		}
	}
	if v, ok := vals[KeyUpdatedAt]; ok && v != "" {
		if st.UpdatedAt, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", session.ErrMalformedState, KeyUpdatedAt, err)
		}
	}
	return st, nil
}

// Save writes all session keys in one transaction.
func (s *SessionCache) Save(ctx context.Context, snap session.Snapshot, updatedAt time.Time) error {
	questions, err := json.Marshal(snap.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	results, err := json.Marshal(snap.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return s.kv.SetMany(ctx, map[string]string{
		KeyQuestions: string(questions),
		KeyTopic:     snap.Topic,
		KeyResults:   string(results),
		KeyIndex:     strconv.Itoa(snap.CurrentIndex),
		KeyUpdatedAt: updatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// Clear removes every session key.
func (s *SessionCache) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, sessionKeys...)
}
