package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/examiz/internal/localcache"
	"github.com/abhisek/examiz/internal/remote"
	"github.com/abhisek/examiz/internal/server"
	"github.com/abhisek/examiz/internal/session"
	"github.com/abhisek/examiz/internal/store"
)

type playEnv struct {
	store *store.Store
	cache *localcache.Cache
	api   *remote.Client
	rec   *session.Reconciler
}

func newPlayEnv(t *testing.T) *playEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "server.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	ts := httptest.NewServer(server.New(st).Handler())
	t.Cleanup(ts.Close)

	cache, err := localcache.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	api := remote.New(ts.URL)
	rec := session.NewReconciler(cache.Sessions(), api)
	t.Cleanup(rec.Close)
	return &playEnv{store: st, cache: cache, api: api, rec: rec}
}

func (e *playEnv) start(t *testing.T) *session.State {
	t.Helper()
	ctx := context.Background()
	qs, _, err := e.store.Questions().Save(ctx, []session.Question{
		{Content: "おはよう", Options: session.Options{{Key: "A", Text: "good morning"}, {Key: "B", Text: "good night"}}, CorrectAnswer: "A", KnowledgePoint: "greetings"},
		{Content: "おやすみ", Options: session.Options{{Key: "A", Text: "good morning"}, {Key: "B", Text: "good night"}}, CorrectAnswer: "B", KnowledgePoint: "greetings"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	st, err := e.rec.Start(ctx, "Greetings", qs)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return st
}

func runPlay(t *testing.T, e *playEnv, st *session.State, input string) string {
	t.Helper()
	var out bytes.Buffer
	p := newPrompter(strings.NewReader(input), &out)
	eng := session.NewEngine(e.rec, st, e.api, nil)
	if err := playLoop(context.Background(), eng, p, &out); err != nil {
		t.Fatalf("playLoop: %v", err)
	}
	return out.String()
}

func TestPlayLoop_FinishesSession(t *testing.T) {
	e := newPlayEnv(t)
	st := e.start(t)

	out := runPlay(t, e, st, "a\n\nA\n\n")

	for _, want := range []string{"✓ Correct!", "✗ Wrong.", "Answer: B", "Greetings: 1/2 correct"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	logs, err := e.store.History().Logs(context.Background(), 10)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Answered != 2 || logs[0].Correct != 1 {
		t.Errorf("logs = %+v, want one session 1/2", logs)
	}
	if local, _ := e.cache.Sessions().Load(context.Background()); local != nil {
		t.Errorf("local session survived finish: %+v", local.Snapshot)
	}
}

func TestPlayLoop_QuitKeepsSession(t *testing.T) {
	e := newPlayEnv(t)
	st := e.start(t)

	out := runPlay(t, e, st, "help\nbogus\nA\n")
	if !strings.Contains(out, "Commands:") {
		t.Errorf("help not printed:\n%s", out)
	}
	if !strings.Contains(out, `unknown command "bogus"`) {
		t.Errorf("unknown command not reported:\n%s", out)
	}
	if !strings.Contains(out, "Session saved.") {
		t.Errorf("quit message missing:\n%s", out)
	}

	local, err := e.cache.Sessions().Load(context.Background())
	if err != nil || local == nil {
		t.Fatalf("local session = %v, %v; want kept", local, err)
	}
	if !local.Results[0].Correct() || local.Results[1] != nil {
		t.Errorf("results = %+v", local.Results)
	}
	remoteSt, err := e.api.GetSession(context.Background(), session.DefaultSessionKey)
	if err != nil || remoteSt == nil {
		t.Fatalf("remote session = %v, %v; want kept", remoteSt, err)
	}
}

func TestPlayLoop_SkipAndJump(t *testing.T) {
	e := newPlayEnv(t)
	st := e.start(t)

	runPlay(t, e, st, "skip\njump 1\n")

	if st.Results[0] == nil || !st.Results[0].Skipped {
		t.Errorf("first result = %+v, want skipped", st.Results[0])
	}
	if st.CurrentIndex != 0 {
		t.Errorf("CurrentIndex = %d, want 0", st.CurrentIndex)
	}
}

func TestOptionKey(t *testing.T) {
	upper := session.Options{{Key: "A", Text: "x"}, {Key: "B", Text: "y"}}
	lower := session.Options{{Key: "a", Text: "x"}, {Key: "b", Text: "y"}}
	mixed := session.Options{{Key: "a", Text: "x"}, {Key: "A", Text: "y"}}
	tests := []struct {
		opts   session.Options
		line   string
		want   string
		wantOK bool
	}{
		{upper, "a", "A", true},
		{upper, "B", "B", true},
		{lower, "A", "a", true},
		{lower, "b", "b", true},
		{mixed, "A", "A", true},
		{mixed, "a", "a", true},
		{upper, "c", "", false},
		{upper, "", "", false},
		{upper, "skip", "", false},
	}
	for _, tt := range tests {
		got, ok := optionKey(tt.opts, tt.line)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("optionKey(%v, %q) = %q, %v, want %q, %v", tt.opts.Keys(), tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPlayLoop_LowerCaseKeys(t *testing.T) {
	e := newPlayEnv(t)
	ctx := context.Background()
	qs, _, err := e.store.Questions().Save(ctx, []session.Question{
		{Content: "ありがとう", Options: session.Options{{Key: "a", Text: "thanks"}, {Key: "b", Text: "sorry"}}, CorrectAnswer: "a", KnowledgePoint: "greetings"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	st, err := e.rec.Start(ctx, "Greetings", qs)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	out := runPlay(t, e, st, "A\n\n")
	if !strings.Contains(out, "✓ Correct!") {
		t.Errorf("lower-case key not accepted:\n%s", out)
	}
	if st.Results[0] == nil || st.Results[0].SelectedAnswer != "a" {
		t.Errorf("result = %+v, want selected a", st.Results[0])
	}
}

func TestMarkStrip(t *testing.T) {
	marks := []session.SlotMark{session.MarkCorrect, session.MarkIncorrect, session.MarkSkipped, session.MarkUnanswered}
	if got, want := markStrip(marks, 2), "✓✗[-]·"; got != want {
		t.Errorf("markStrip = %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"日本語の文章です", 4, "日本語…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
