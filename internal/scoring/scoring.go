// Package scoring grades multiple-choice submissions against an answer key.
//
// Scores are out of MaxScore and rounded half-up to two decimals. The
// computation is done in integer hundredths so that a full-marks submission
// is always exactly 20.00 regardless of the number of questions.
package scoring

import "strings"

const (
	// MaxScore is the fixed total distributed evenly across a test's questions.
	MaxScore = 20.0
	// PassingScore is the policy threshold. A result passes only when strictly above it.
	PassingScore = 12.0
)

// KeyEntry is one question of an answer key.
type KeyEntry struct {
	QuestionID int    `json:"question_id"`
	Correct    string `json:"correct"`
}

// Answer is one submitted answer. Label may be anything; only a-d count.
type Answer struct {
	QuestionID int    `json:"question_id"`
	Label      string `json:"answer"`
}

// Result is the outcome of scoring a submission.
type Result struct {
	CorrectCount      int
	TotalQuestions    int
	Score             float64
	PointsPerQuestion float64
	// Responses holds the normalized label per key question, nil when unanswered.
	Responses map[int]*string
}

// NormalizeLabel lower-cases and trims s, reporting whether it is one of a, b, c, d.
func NormalizeLabel(s string) (string, bool) {
	l := strings.ToLower(strings.TrimSpace(s))
	switch l {
	case "a", "b", "c", "d":
		return l, true
	}
	return "", false
}

// IsPassing reports whether score is above the passing threshold.
func IsPassing(score float64) bool {
	return score > PassingScore
}

// Score grades answers against key. It never fails: answers for unknown
// questions are ignored and invalid labels count as unanswered. When the same
// question is answered more than once the last answer wins.
func Score(key []KeyEntry, answers []Answer) Result {
	submitted := make(map[int]string, len(answers))
	for _, a := range answers {
		submitted[a.QuestionID] = a.Label
	}

	res := Result{
		TotalQuestions: len(key),
		Responses:      make(map[int]*string, len(key)),
	}

	for _, q := range key {
		label, ok := NormalizeLabel(submitted[q.QuestionID])
		if !ok {
			res.Responses[q.QuestionID] = nil
			continue
		}
		res.Responses[q.QuestionID] = &label

		if correct, valid := NormalizeLabel(q.Correct); valid && label == correct {
			res.CorrectCount++
		}
	}

	if res.TotalQuestions == 0 {
		return res
	}

	res.PointsPerQuestion = MaxScore / float64(res.TotalQuestions)
	res.Score = float64(roundHundredths(res.CorrectCount, res.TotalQuestions)) / 100
	return res
}

// roundHundredths returns round_half_up(correct * 2000 / total).
func roundHundredths(correct, total int) int {
	const maxHundredths = int(MaxScore * 100)
	return (2*maxHundredths*correct + total) / (2 * total)
}
