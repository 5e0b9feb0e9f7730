package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyOf(labels ...string) []KeyEntry {
	key := make([]KeyEntry, len(labels))
	for i, l := range labels {
		key[i] = KeyEntry{QuestionID: i + 1, Correct: l}
	}
	return key
}

func answersOf(labels ...string) []Answer {
	answers := make([]Answer, len(labels))
	for i, l := range labels {
		answers[i] = Answer{QuestionID: i + 1, Label: l}
	}
	return answers
}

func TestScore_FourQuestionScenario(t *testing.T) {
	key := keyOf("a", "b", "c", "d")

	tests := []struct {
		name    string
		answers []Answer
		correct int
		score   float64
		passing bool
	}{
		{name: "one invalid label", answers: answersOf("a", "b", "x", "d"), correct: 3, score: 15, passing: true},
		{name: "all correct", answers: answersOf("a", "b", "c", "d"), correct: 4, score: 20, passing: true},
		{name: "upper case accepted", answers: answersOf("A", " B ", "c", "D"), correct: 4, score: 20, passing: true},
		{name: "half correct", answers: answersOf("a", "b", "a", "a"), correct: 2, score: 10, passing: false},
		{name: "nothing submitted", answers: nil, correct: 0, score: 0, passing: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(key, tt.answers)
			assert.Equal(t, tt.correct, got.CorrectCount)
			assert.Equal(t, 4, got.TotalQuestions)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, 5.0, got.PointsPerQuestion)
			assert.Equal(t, tt.passing, IsPassing(got.Score))
		})
	}
}

func TestScore_FullMarksIsExactlyTwenty(t *testing.T) {
	for n := 1; n <= 200; n++ {
		labels := make([]string, n)
		for i := range labels {
			labels[i] = []string{"a", "b", "c", "d"}[i%4]
		}
		got := Score(keyOf(labels...), answersOf(labels...))
		require.Equalf(t, 20.0, got.Score, "n=%d", n)
		require.Equalf(t, n, got.CorrectCount, "n=%d", n)
	}
}

func TestScore_ZeroCorrectIsZero(t *testing.T) {
	for n := 1; n <= 50; n++ {
		labels := make([]string, n)
		wrong := make([]string, n)
		for i := range labels {
			labels[i] = "a"
			wrong[i] = "b"
		}
		got := Score(keyOf(labels...), answersOf(wrong...))
		require.Equalf(t, 0.0, got.Score, "n=%d", n)
	}
}

func TestScore_EmptyKey(t *testing.T) {
	got := Score(nil, answersOf("a", "b"))

	assert.Equal(t, 0, got.TotalQuestions)
	assert.Equal(t, 0, got.CorrectCount)
	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, 0.0, got.PointsPerQuestion)
	assert.Empty(t, got.Responses)
}

func TestScore_RoundsHalfUp(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		total   int
		want    float64
	}{
		{name: "thirds round down", correct: 1, total: 3, want: 6.67},
		{name: "two thirds", correct: 2, total: 3, want: 13.33},
		{name: "exact half hundredth rounds up", correct: 1, total: 32, want: 0.63},
		{name: "three of thirty-two", correct: 3, total: 32, want: 1.88},
		{name: "sixths", correct: 1, total: 6, want: 3.33},
		{name: "sevenths", correct: 5, total: 7, want: 14.29},
		{name: "sixteenths stay exact", correct: 1, total: 16, want: 1.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := make([]string, tt.total)
			answers := make([]string, tt.total)
			for i := range labels {
				labels[i] = "c"
				answers[i] = "d"
				if i < tt.correct {
					answers[i] = "c"
				}
			}
			got := Score(keyOf(labels...), answersOf(answers...))
			assert.Equal(t, tt.want, got.Score)
		})
	}
}

func TestScore_IgnoresUnknownQuestionsAndKeepsLastDuplicate(t *testing.T) {
	key := []KeyEntry{{QuestionID: 10, Correct: "b"}, {QuestionID: 11, Correct: "c"}}
	answers := []Answer{
		{QuestionID: 10, Label: "a"},
		{QuestionID: 99, Label: "b"},
		{QuestionID: 10, Label: "b"},
	}

	got := Score(key, answers)

	assert.Equal(t, 1, got.CorrectCount)
	assert.Equal(t, 10.0, got.Score)
	require.NotNil(t, got.Responses[10])
	assert.Equal(t, "b", *got.Responses[10])
	assert.Nil(t, got.Responses[11])
	assert.NotContains(t, got.Responses, 99)
}

func TestScore_Deterministic(t *testing.T) {
	key := keyOf("a", "b", "c")
	answers := answersOf("a", "c", "c")

	assert.Equal(t, Score(key, answers), Score(key, answers))
}

func TestIsPassingIsStrict(t *testing.T) {
	assert.False(t, IsPassing(12))
	assert.True(t, IsPassing(12.01))
	assert.False(t, IsPassing(0))
}

func TestNormalizeLabel(t *testing.T) {
	for in, want := range map[string]string{"a": "a", " D": "d", "C ": "c"} {
		got, ok := NormalizeLabel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "e", "ab", "1"} {
		_, ok := NormalizeLabel(in)
		assert.False(t, ok, in)
	}
}
