package cmd

import (
	"strconv"
	"testing"

	"github.com/abhisek/examiz/internal/questiongen"
	"github.com/abhisek/examiz/internal/store"
)

func genEvent(topic string, requested int, response string, ok bool) store.LLMRequestEventRecord {
	return store.LLMRequestEventRecord{
		Purpose:      "question-gen",
		Success:      ok,
		RequestBody:  "[user]\nTopic: " + topic + "\nNumber of questions: " + strconv.Itoa(requested) + "\n",
		ResponseBody: response,
	}
}

const twoQuestions = `{"questions":[
	{"content":"q1","options":{"A":"x","B":"y"},"correct_answer":"A","explanation":"","memorization_tip":"","knowledge_point":"k"},
	{"content":"q2","options":{"A":"x","B":"x"},"correct_answer":"A","explanation":"","memorization_tip":"","knowledge_point":"k"}
]}`

func TestTopicYields(t *testing.T) {
	events := []store.LLMRequestEventRecord{
		genEvent("keigo", 2, twoQuestions, true),
		genEvent("keigo", 3, "", false),
		genEvent("N1 grammar", 2, twoQuestions, true),
		{Purpose: "other", Success: true, RequestBody: "[user]\nhello"},
	}

	got := topicYields(events)
	if len(got) != 2 {
		t.Fatalf("topicYields = %+v, want 2 topics", got)
	}
	want := topicYield{Topic: "keigo", Calls: 2, Failed: 1, Requested: 5, Valid: 1}
	if got[0] != want {
		t.Errorf("got[0] = %+v, want %+v", got[0], want)
	}
	if got[1].Topic != "N1 grammar" || got[1].Valid != 1 {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestYield(t *testing.T) {
	tests := []struct {
		rec     questiongen.Record
		success bool
		want    string
	}{
		{questiongen.Record{Requested: 5, Valid: 4}, true, "4/5"},
		{questiongen.Record{Requested: 5}, false, "-"},
		{questiongen.Record{}, true, "?"},
	}
	for _, tt := range tests {
		if got := yield(tt.rec, tt.success); got != tt.want {
			t.Errorf("yield(%+v, %v) = %q, want %q", tt.rec, tt.success, got, tt.want)
		}
	}
}
