package model

import "github.com/google/uuid"

// AnswerRecord is the participant's current answer to one question. A later
// write to the same question replaces the record entirely; correctness is
// recomputed on every write, never patched incrementally.
type AnswerRecord struct {
	QuestionID       uuid.UUID  `json:"question_id"`
	SelectedOption   *OptionKey `json:"selected_option"`
	IsCorrect        bool       `json:"is_correct"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	AnsweredAtEpoch  int64      `json:"answered_at_epoch"`
}

// NavigationEvent records one move between questions. The history is
// append-only and bounded; it feeds analytics only, never correctness.
type NavigationEvent struct {
	From    int   `json:"from"`
	To      int   `json:"to"`
	AtEpoch int64 `json:"at_epoch"`
}
