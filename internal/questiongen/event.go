package questiongen

import (
	"bufio"
	"encoding/json"
	"strconv"
	"strings"
)

// Record is what a logged generation call asked for and got back.
type Record struct {
	Topic     string
	Requested int

	// Returned counts the questions in the response. Valid is the subset
	// that passes structural validation; duplicates of the bank at call
	// time cannot be told apart from the log alone.
	Returned int
	Valid    int
	Invalid  []*ValidationError

	KnowledgePoints []string
}

// ParseRecord reads a generation call back from its logged request and
// response bodies. It reports false when the request was not written by
// this package.
func ParseRecord(request, response string) (Record, bool) {
	var rec Record
	found := false
	sc := bufio.NewScanner(strings.NewReader(request))
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, topicPrefix); ok && !found {
			rec.Topic = strings.TrimSpace(v)
			found = true
		} else if v, ok := strings.CutPrefix(line, countPrefix); ok && rec.Requested == 0 {
			rec.Requested, _ = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	if !found {
		return Record{}, false
	}

	var out setOutput
	if response == "" || json.Unmarshal([]byte(response), &out) != nil {
		return rec, true
	}
	rec.Returned = len(out.Questions)
	seen := map[string]bool{}
	var structural StructuralValidator
	for _, raw := range out.Questions {
		q := toQuestion(raw, rec.Topic)
		if verr := structural.Validate(&q, Input{Topic: rec.Topic}); verr != nil {
			rec.Invalid = append(rec.Invalid, verr)
			continue
		}
		rec.Valid++
		if !seen[q.KnowledgePoint] {
			seen[q.KnowledgePoint] = true
			rec.KnowledgePoints = append(rec.KnowledgePoints, q.KnowledgePoint)
		}
	}
	return rec, true
}
