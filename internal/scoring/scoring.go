// Package scoring computes aggregate and per-subject statistics from a
// frozen question set and answer ledger. It is pure: no state, no I/O.
package scoring

import (
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/model"
)

// DefaultPointsPerQuestion is the score awarded per correct answer.
const DefaultPointsPerQuestion = 100

// Stats is the aggregate result of one session.
type Stats struct {
	TotalQuestions int            `json:"total_questions"`
	Attempted      int            `json:"attempted"`
	Correct        int            `json:"correct"`
	Incorrect      int            `json:"incorrect"`
	Skipped        int            `json:"skipped"`
	Score          int            `json:"score"`
	Percentage     float64        `json:"percentage"`
	Subjects       []SubjectStats `json:"subjects"`
}

// SubjectStats is the per-subject breakdown. Accuracy is correct/attempted
// within the subject; AvgTimeSeconds averages over attempted questions.
// Unanswered questions count toward the subject total only.
type SubjectStats struct {
	Subject        string  `json:"subject"`
	TotalQuestions int     `json:"total_questions"`
	Attempted      int     `json:"attempted"`
	Correct        int     `json:"correct"`
	Accuracy       float64 `json:"accuracy"`
	AvgTimeSeconds float64 `json:"avg_time_seconds"`
}

// Evaluate scores a frozen (questions, answers) pair. pointsPerQuestion <= 0
// falls back to DefaultPointsPerQuestion.
func Evaluate(questions []model.Question, answers map[uuid.UUID]model.AnswerRecord, pointsPerQuestion int) *Stats {
	if pointsPerQuestion <= 0 {
		pointsPerQuestion = DefaultPointsPerQuestion
	}

	type subjectAcc struct {
		total     int
		attempted int
		correct   int
		timeSpent int
	}

	stats := &Stats{TotalQuestions: len(questions)}
	bySubject := make(map[string]*subjectAcc)
	order := make([]string, 0)

	for _, q := range questions {
		acc, ok := bySubject[q.Subject]
		if !ok {
			acc = &subjectAcc{}
			bySubject[q.Subject] = acc
			order = append(order, q.Subject)
		}
		acc.total++

		rec, answered := answers[q.ID]
		if !answered || rec.SelectedOption == nil {
			continue
		}

		stats.Attempted++
		acc.attempted++
		acc.timeSpent += rec.TimeSpentSeconds
		if rec.IsCorrect {
			stats.Correct++
			acc.correct++
		}
	}

	stats.Incorrect = stats.Attempted - stats.Correct
	stats.Skipped = stats.TotalQuestions - stats.Attempted
	stats.Score = stats.Correct * pointsPerQuestion
	if stats.TotalQuestions > 0 {
		stats.Percentage = round2(float64(stats.Correct) / float64(stats.TotalQuestions) * 100)
	}

	for _, subject := range order {
		acc := bySubject[subject]
		entry := SubjectStats{
			Subject:        subject,
			TotalQuestions: acc.total,
			Attempted:      acc.attempted,
			Correct:        acc.correct,
		}
		if acc.attempted > 0 {
			entry.Accuracy = round2(float64(acc.correct) / float64(acc.attempted) * 100)
			entry.AvgTimeSeconds = round2(float64(acc.timeSpent) / float64(acc.attempted))
		}
		stats.Subjects = append(stats.Subjects, entry)
	}

	// Accuracy-descending is a presentation order; ties break on subject
	// name so the output is deterministic.
	sort.SliceStable(stats.Subjects, func(i, j int) bool {
		a, b := stats.Subjects[i], stats.Subjects[j]
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		return a.Subject < b.Subject
	})

	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
