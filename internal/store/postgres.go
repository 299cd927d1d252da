package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizora/session-engine/internal/model"
)

// PostgresStore persists snapshots, submission records and per-question
// outcome rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// SaveSnapshot UPSERTs the latest snapshot for a session. Snapshots are
// last-write-wins, so a stale duplicate after a retry is harmless.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_snapshots (session_id, test_id, payload, taken_at)
		 VALUES ($1, $2, $3::jsonb, to_timestamp($4))
		 ON CONFLICT (session_id) DO UPDATE
		 SET payload = EXCLUDED.payload, taken_at = EXCLUDED.taken_at`,
		snap.SessionID, snap.TestID, payload, snap.TakenAtEpoch,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads back the latest persisted snapshot for a session.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, sessionID uuid.UUID) (*model.Snapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM session_snapshots WHERE session_id = $1`,
		sessionID,
	).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// SaveSubmission UPSERTs the aggregate submission record. The UPSERT keyed
// by session_id makes the retry after a failed first attempt idempotent.
func (s *PostgresStore) SaveSubmission(ctx context.Context, record *model.SubmissionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO submissions (
		     session_id, test_id, submitted_at, forced,
		     total_questions, attempted, correct, incorrect, skipped,
		     score, percentage, subject_breakdown
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb)
		 ON CONFLICT (session_id) DO UPDATE
		 SET submitted_at = EXCLUDED.submitted_at,
		     forced = EXCLUDED.forced,
		     total_questions = EXCLUDED.total_questions,
		     attempted = EXCLUDED.attempted,
		     correct = EXCLUDED.correct,
		     incorrect = EXCLUDED.incorrect,
		     skipped = EXCLUDED.skipped,
		     score = EXCLUDED.score,
		     percentage = EXCLUDED.percentage,
		     subject_breakdown = EXCLUDED.subject_breakdown`,
		record.SessionID, record.TestID, record.SubmittedAt, record.Forced,
		record.TotalQuestions, record.Attempted, record.Correct, record.Incorrect,
		record.Skipped, record.Score, record.Percentage, record.SubjectBreakdown,
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

// SaveOutcomes bulk-inserts one batch of per-question outcome rows via
// COPY, falling back to row-by-row inserts if the bulk path fails.
func (s *PostgresStore) SaveOutcomes(ctx context.Context, sessionID uuid.UUID, outcomes []model.QuestionOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(outcomes))
	for _, o := range outcomes {
		var selected interface{}
		if o.SelectedOption != nil {
			selected = string(*o.SelectedOption)
		}
		rows = append(rows, []interface{}{
			sessionID, o.QuestionID, o.OrderNum, o.Subject, o.Topic,
			string(o.Difficulty), selected, string(o.CorrectOption),
			o.IsAttempted, o.IsCorrect, o.TimeSpentSeconds,
		})
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"submission_outcomes"},
		[]string{
			"session_id", "question_id", "order_num", "subject", "topic",
			"difficulty", "selected_option", "correct_option",
			"is_attempted", "is_correct", "time_spent_seconds",
		},
		pgx.CopyFromRows(rows),
	)
	if err == nil {
		return nil
	}

	// COPY is all-or-nothing; retry the batch row by row so one bad row
	// does not sink its neighbors.
	var lastErr error
	for _, o := range outcomes {
		var selected interface{}
		if o.SelectedOption != nil {
			selected = string(*o.SelectedOption)
		}
		if _, execErr := s.pool.Exec(ctx,
			`INSERT INTO submission_outcomes (
			     session_id, question_id, order_num, subject, topic,
			     difficulty, selected_option, correct_option,
			     is_attempted, is_correct, time_spent_seconds
			 )
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (session_id, question_id) DO UPDATE
			 SET selected_option = EXCLUDED.selected_option,
			     is_attempted = EXCLUDED.is_attempted,
			     is_correct = EXCLUDED.is_correct,
			     time_spent_seconds = EXCLUDED.time_spent_seconds`,
			sessionID, o.QuestionID, o.OrderNum, o.Subject, o.Topic,
			string(o.Difficulty), selected, string(o.CorrectOption),
			o.IsAttempted, o.IsCorrect, o.TimeSpentSeconds,
		); execErr != nil {
			lastErr = execErr
		}
	}
	if lastErr != nil {
		return fmt.Errorf("save outcomes: %w", lastErr)
	}
	return nil
}
