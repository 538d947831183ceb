package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality is a self-reported recall rating on the SM-2 scale.
type Quality int

const (
	QualityForgot Quality = 1
	QualityHard   Quality = 2
	QualityGood   Quality = 4
	QualityEasy   Quality = 5
)

// Qualities lists the ratings offered for review items, worst first.
var Qualities = []Quality{QualityForgot, QualityHard, QualityGood, QualityEasy}

// Valid reports whether q is one of the offered ratings.
func (q Quality) Valid() bool {
	switch q {
	case QualityForgot, QualityHard, QualityGood, QualityEasy:
		return true
	}
	return false
}

func (q Quality) String() string {
	switch q {
	case QualityForgot:
		return "forgot"
	case QualityHard:
		return "hard"
	case QualityGood:
		return "good"
	case QualityEasy:
		return "easy"
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

// ParseQuality accepts either a rating name or its numeric value.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, q := range Qualities {
		if s == q.String() {
			return q, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err == nil && Quality(n).Valid() {
		return Quality(n), nil
	}
	return 0, fmt.Errorf("invalid quality %q", s)
}
