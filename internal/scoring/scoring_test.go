package scoring

import (
	"testing"

	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func question(order int, subject string, correct model.OptionKey) model.Question {
	return model.Question{
		ID:            uuid.New(),
		OrderNum:      order,
		Subject:       subject,
		CorrectOption: correct,
	}
}

func answer(q model.Question, selected model.OptionKey, timeSpent int) model.AnswerRecord {
	return model.AnswerRecord{
		QuestionID:       q.ID,
		SelectedOption:   &selected,
		IsCorrect:        selected == q.CorrectOption,
		TimeSpentSeconds: timeSpent,
	}
}

func TestEvaluateAllAnsweredHalfCorrect(t *testing.T) {
	// 10 questions: 0-4 answered correctly, 5-9 incorrectly.
	questions := make([]model.Question, 0, 10)
	answers := make(map[uuid.UUID]model.AnswerRecord, 10)
	for i := 0; i < 10; i++ {
		q := question(i, "General", model.OptionA)
		questions = append(questions, q)
		if i < 5 {
			answers[q.ID] = answer(q, model.OptionA, 30)
		} else {
			answers[q.ID] = answer(q, model.OptionC, 30)
		}
	}

	stats := Evaluate(questions, answers, DefaultPointsPerQuestion)

	assert.Equal(t, 10, stats.TotalQuestions)
	assert.Equal(t, 10, stats.Attempted)
	assert.Equal(t, 5, stats.Correct)
	assert.Equal(t, 5, stats.Incorrect)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, 500, stats.Score)
	assert.Equal(t, 50.00, stats.Percentage)
}

func TestEvaluateNothingAnswered(t *testing.T) {
	questions := []model.Question{
		question(0, "Math", model.OptionA),
		question(1, "Math", model.OptionB),
		question(2, "Physics", model.OptionC),
	}

	stats := Evaluate(questions, nil, DefaultPointsPerQuestion)

	assert.Equal(t, 3, stats.TotalQuestions)
	assert.Equal(t, 0, stats.Attempted)
	assert.Equal(t, 0, stats.Correct)
	assert.Equal(t, 0, stats.Incorrect)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 0, stats.Score)
	assert.Equal(t, 0.0, stats.Percentage)

	// Unanswered questions still count toward their subject totals.
	require.Len(t, stats.Subjects, 2)
	for _, subject := range stats.Subjects {
		assert.Equal(t, 0, subject.Attempted)
		assert.Equal(t, 0.0, subject.Accuracy)
	}
}

func TestEvaluateEmptyQuestionSet(t *testing.T) {
	stats := Evaluate(nil, nil, DefaultPointsPerQuestion)
	assert.Equal(t, 0, stats.TotalQuestions)
	assert.Equal(t, 0.0, stats.Percentage)
	assert.Empty(t, stats.Subjects)
}

func TestEvaluateSubjectBreakdown(t *testing.T) {
	math0 := question(0, "Math", model.OptionA)
	math1 := question(1, "Math", model.OptionB)
	phys0 := question(2, "Physics", model.OptionC)
	phys1 := question(3, "Physics", model.OptionD)
	chem0 := question(4, "Chemistry", model.OptionA)

	questions := []model.Question{math0, math1, phys0, phys1, chem0}
	answers := map[uuid.UUID]model.AnswerRecord{
		math0.ID: answer(math0, model.OptionA, 20), // correct
		math1.ID: answer(math1, model.OptionC, 40), // wrong
		phys0.ID: answer(phys0, model.OptionC, 15), // correct
		phys1.ID: answer(phys1, model.OptionD, 25), // correct
		// Chemistry untouched.
	}

	stats := Evaluate(questions, answers, DefaultPointsPerQuestion)

	require.Len(t, stats.Subjects, 3)

	// Sorted by accuracy descending: Physics (100), Math (50), Chemistry (0).
	assert.Equal(t, "Physics", stats.Subjects[0].Subject)
	assert.Equal(t, 100.0, stats.Subjects[0].Accuracy)
	assert.Equal(t, 20.0, stats.Subjects[0].AvgTimeSeconds)

	assert.Equal(t, "Math", stats.Subjects[1].Subject)
	assert.Equal(t, 2, stats.Subjects[1].Attempted)
	assert.Equal(t, 50.0, stats.Subjects[1].Accuracy)
	assert.Equal(t, 30.0, stats.Subjects[1].AvgTimeSeconds)

	assert.Equal(t, "Chemistry", stats.Subjects[2].Subject)
	assert.Equal(t, 1, stats.Subjects[2].TotalQuestions)
	assert.Equal(t, 0, stats.Subjects[2].Attempted)
}

func TestEvaluateIgnoresClearedAnswers(t *testing.T) {
	q := question(0, "Math", model.OptionA)
	cleared := model.AnswerRecord{QuestionID: q.ID, SelectedOption: nil}

	stats := Evaluate([]model.Question{q}, map[uuid.UUID]model.AnswerRecord{q.ID: cleared}, DefaultPointsPerQuestion)

	assert.Equal(t, 0, stats.Attempted)
	assert.Equal(t, 1, stats.Skipped)
}

func TestEvaluatePercentageRounding(t *testing.T) {
	questions := make([]model.Question, 0, 3)
	answers := make(map[uuid.UUID]model.AnswerRecord, 1)
	for i := 0; i < 3; i++ {
		questions = append(questions, question(i, "Math", model.OptionA))
	}
	answers[questions[0].ID] = answer(questions[0], model.OptionA, 5)

	stats := Evaluate(questions, answers, DefaultPointsPerQuestion)
	// 1/3 → 33.33, rounded to two decimals.
	assert.Equal(t, 33.33, stats.Percentage)
}

func TestEvaluateCustomPoints(t *testing.T) {
	q := question(0, "Math", model.OptionA)
	answers := map[uuid.UUID]model.AnswerRecord{q.ID: answer(q, model.OptionA, 5)}

	stats := Evaluate([]model.Question{q}, answers, 4)
	assert.Equal(t, 4, stats.Score)

	stats = Evaluate([]model.Question{q}, answers, 0)
	assert.Equal(t, DefaultPointsPerQuestion, stats.Score)
}
