package spacedrep

// Ease factors are stored in hundredths: 250 means an ease of 2.5.
const (
	// InitialEase is the ease factor of a newly queued question.
	InitialEase = 250

	// MinEase is the floor below which the ease factor never drops.
	MinEase = 130

	// LapsePenalty is subtracted from the ease on a wrong answer.
	LapsePenalty = 20
)

// FirstIntervalDays is the interval after a question enters the queue
// or lapses.
const FirstIntervalDays = 1

// SecondIntervalDays is the interval after the first successful recall
// following a lapse.
const SecondIntervalDays = 6

// MaxIntervalDays caps how far out a review is scheduled.
const MaxIntervalDays = 365

// PassingQuality is the lowest recall quality counted as remembered.
const PassingQuality = 3
