package llm

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/abhisek/examiz/internal/store"
)

func TestMockProvider(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"a":1}`), Usage: Usage{InputTokens: 10}},
		MockJSON(map[string]int{"b": 2}),
	)

	first, err := mock.Generate(context.Background(), UserPrompt("sys", "first"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(first.Content) != `{"a":1}` || first.Usage.InputTokens != 10 || first.StopReason != StopEnd {
		t.Errorf("first = %+v", first)
	}
	second, err := mock.Generate(context.Background(), Request{})
	if err != nil || string(second.Content) != `{"b":2}` {
		t.Errorf("second = %+v, %v", second, err)
	}

	_, err = mock.Generate(context.Background(), Request{})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Errorf("empty queue err = %T, want *ErrProviderUnavailable", err)
	}
	if mock.CallCount() != 3 || mock.Calls[0].System != "sys" {
		t.Errorf("calls = %d, first system %q", mock.CallCount(), mock.Calls[0].System)
	}
}

func TestMockProvider_ValidatesSchema(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{"front":"x"}`)})
	_, err := mock.Generate(context.Background(), Request{Schema: cardSchema()})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Errorf("err = %v, want ErrInvalidResponse", err)
	}
}

func TestPurposeContext(t *testing.T) {
	if got := PurposeFrom(context.Background()); got != PurposeUnknown {
		t.Errorf("PurposeFrom(empty) = %q, want %q", got, PurposeUnknown)
	}
	ctx := WithPurpose(context.Background(), PurposeQuestionGen)
	if got := PurposeFrom(ctx); got != PurposeQuestionGen {
		t.Errorf("PurposeFrom = %q, want %q", got, PurposeQuestionGen)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"mock needs nothing", func(c *Config) { c.Provider = ProviderMock }, ""},
		{"anthropic without key", func(c *Config) {}, "EXAMIZ_ANTHROPIC_API_KEY"},
		{"anthropic with key", func(c *Config) { c.Anthropic.APIKey = "k" }, ""},
		{"openrouter without key", func(c *Config) { c.Provider = ProviderOpenRouter }, "EXAMIZ_OPENROUTER_API_KEY"},
		{"gemini with key", func(c *Config) { c.Provider = ProviderGemini; c.Gemini.APIKey = "k" }, ""},
		{"unknown", func(c *Config) { c.Provider = "llama" }, "unknown LLM provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("Validate() = %v, want nil", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		"EXAMIZ_LLM_PROVIDER":      "openai",
		"EXAMIZ_OPENAI_API_KEY":    "sk-test",
		"EXAMIZ_OPENAI_BASE_URL":   "http://localhost:8080/v1",
		"EXAMIZ_ANTHROPIC_MODEL":   "",
		"UNRELATED_OPENAI_API_KEY": "nope",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Provider != ProviderOpenAI || cfg.OpenAI.APIKey != "sk-test" || cfg.OpenAI.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Anthropic.Model != "claude-haiku" {
		t.Errorf("empty variable overrode model: %q", cfg.Anthropic.Model)
	}
}

func TestDiscoverConfig(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	if _, ok := DiscoverConfig(); ok {
		t.Fatal("DiscoverConfig found a provider with no keys set")
	}

	t.Setenv("ANTHROPIC_API_KEY", "ak")
	t.Setenv("OPENROUTER_API_KEY", "ork")
	cfg, ok := DiscoverConfig()
	if !ok || cfg.Provider != ProviderAnthropic || cfg.Anthropic.APIKey != "ak" {
		t.Errorf("DiscoverConfig = %+v, %v; want anthropic", cfg.Provider, ok)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestResolveModel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"claude-haiku", "claude-haiku-4-5-20251001"},
		{"gemini-flash", "gemini-2.5-flash"},
		{"gpt-4o-mini", "gpt-4o-mini"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.in); got != tt.want {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookupCost(t *testing.T) {
	tests := []struct {
		model     string
		wantInput float64
		wantNil   bool
	}{
		{"gpt-4o-mini", 0.15, false},
		{"gpt-4o-mini-2024-07-18", 0.15, false},
		{"gpt-4o-2024-08-06", 2.5, false},
		{"claude-haiku-4-5-20251001", 1, false},
		{"claude-sonnet-4-5-20250929", 3, false},
		{"google/gemini-2.5-flash", 0.3, false},
		{"mock", 0, true},
	}
	for _, tt := range tests {
		c := LookupCost(tt.model)
		if tt.wantNil {
			if c != nil {
				t.Errorf("LookupCost(%q) = %+v, want nil", tt.model, c)
			}
			continue
		}
		if c == nil || c.InputPerMTok != tt.wantInput {
			t.Errorf("LookupCost(%q) = %+v, want input %v", tt.model, c, tt.wantInput)
		}
	}

	cost := ModelCost{InputPerMTok: 1, OutputPerMTok: 5}.Cost(1_000_000, 200_000)
	if math.Abs(cost-2) > 1e-9 {
		t.Errorf("Cost = %v, want 2", cost)
	}

	usd, unknown := TotalCost(map[string][2]int{"gpt-4o-mini": {1_000_000, 0}, "mock": {10, 10}})
	if math.Abs(usd-0.15) > 1e-9 || len(unknown) != 1 {
		t.Errorf("TotalCost = %v, %v", usd, unknown)
	}
}

type recordingEvents struct {
	store.EventRepo
	got []store.LLMRequestEventData
	err error
}

func (r *recordingEvents) AppendLLMRequest(_ context.Context, d store.LLMRequestEventData) error {
	r.got = append(r.got, d)
	return r.err
}

func TestLoggingProvider(t *testing.T) {
	events := &recordingEvents{}
	mock := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"ok":1}`), Usage: Usage{InputTokens: 7, OutputTokens: 3}},
		MockResponse{Err: errors.New("boom")},
	)
	p := WithLogging(mock, ProviderMock, events, nil)
	ctx := WithPurpose(context.Background(), PurposeAutogen)

	if _, err := p.Generate(ctx, UserPrompt("be terse", "hello")); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := p.Generate(ctx, Request{}); err == nil {
		t.Fatal("expected error to pass through")
	}

	if len(events.got) != 2 {
		t.Fatalf("recorded %d events, want 2", len(events.got))
	}
	ok, failed := events.got[0], events.got[1]
	if !ok.Success || ok.InputTokens != 7 || ok.Purpose != string(PurposeAutogen) || ok.Provider != ProviderMock {
		t.Errorf("success event = %+v", ok)
	}
	if !strings.Contains(ok.RequestBody, "[system]\nbe terse") || ok.ResponseBody != `{"ok":1}` {
		t.Errorf("bodies = %q / %q", ok.RequestBody, ok.ResponseBody)
	}
	if failed.Success || failed.ErrorMessage != "boom" {
		t.Errorf("failure event = %+v", failed)
	}
}

func TestLoggingProvider_RecordFailureIgnored(t *testing.T) {
	events := &recordingEvents{err: errors.New("disk full")}
	p := WithLogging(NewMockProvider(okReply), ProviderMock, events, nil)
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Errorf("Generate = %v, want nil despite record failure", err)
	}
}
