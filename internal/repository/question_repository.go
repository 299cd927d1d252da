package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizora/session-engine/internal/model"
)

// QuestionRepository retrieves the fixed question set of a test. The engine
// trusts the order and ID uniqueness it returns.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// FetchQuestions returns the ordered question list for a test.
func (r *QuestionRepository) FetchQuestions(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, order_num, subject, topic, difficulty,
		        question_text, options, correct_option
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY order_num`,
		testID,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var difficulty, correctOption string
		if err := rows.Scan(
			&q.ID, &q.TestID, &q.OrderNum, &q.Subject, &q.Topic,
			&difficulty, &q.QuestionText, &q.Options, &correctOption,
		); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Difficulty = model.Difficulty(difficulty)
		q.CorrectOption = model.OptionKey(correctOption)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return questions, nil
}
