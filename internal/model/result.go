package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SubmissionRecord is the aggregate result row persisted on submit. This is
// the critical write of the submission pipeline: if it fails, the full
// snapshot and stats go to the local durable backup instead.
type SubmissionRecord struct {
	SessionID        uuid.UUID       `json:"session_id"`
	TestID           uuid.UUID       `json:"test_id"`
	SubmittedAt      time.Time       `json:"submitted_at"`
	Forced           bool            `json:"forced"`
	TotalQuestions   int             `json:"total_questions"`
	Attempted        int             `json:"attempted"`
	Correct          int             `json:"correct"`
	Incorrect        int             `json:"incorrect"`
	Skipped          int             `json:"skipped"`
	Score            int             `json:"score"`
	Percentage       float64         `json:"percentage"`
	SubjectBreakdown json.RawMessage `json:"subject_breakdown"`
}

// QuestionOutcome is one per-question result row, produced for every
// question of the session including unanswered ones.
type QuestionOutcome struct {
	QuestionID       uuid.UUID  `json:"question_id"`
	OrderNum         int        `json:"order_num"`
	Subject          string     `json:"subject"`
	Topic            string     `json:"topic"`
	Difficulty       Difficulty `json:"difficulty"`
	SelectedOption   *OptionKey `json:"selected_option"`
	CorrectOption    OptionKey  `json:"correct_option"`
	IsAttempted      bool       `json:"is_attempted"`
	IsCorrect        bool       `json:"is_correct"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
}

// SubmissionReceipt reports how the submission pipeline fared. A non-zero
// FailedOutcomeBatches means some per-question rows were not persisted even
// though the aggregate record was; BackupWritten is set only on the failure
// path.
type SubmissionReceipt struct {
	FailedOutcomeBatches int  `json:"failed_outcome_batches"`
	BackupWritten        bool `json:"backup_written"`
}
