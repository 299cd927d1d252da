package model

import (
	"github.com/google/uuid"
)

// SessionStatus enumerates assessment session states.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusSubmitting SessionStatus = "SUBMITTING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
)

// Terminal reports whether s permits no further mutation.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// Snapshot is an immutable point-in-time copy of a session's mutable fields,
// taken under the session lock so autosave and submission never observe a
// torn state. Answers are ordered by question order.
type Snapshot struct {
	SessionID          uuid.UUID         `json:"session_id"`
	TestID             uuid.UUID         `json:"test_id"`
	Status             SessionStatus     `json:"status"`
	StartedAtEpoch     int64             `json:"started_at_epoch"`
	DurationSeconds    int               `json:"duration_seconds"`
	CurrentIndex       int               `json:"current_index"`
	Answers            []AnswerRecord    `json:"answers"`
	MarkedForReview    []uuid.UUID       `json:"marked_for_review"`
	NavigationHistory  []NavigationEvent `json:"navigation_history"`
	WarningsFired      []int             `json:"warnings_fired"`
	ElapsedSeconds     int               `json:"elapsed_seconds"`
	RemainingSeconds   int               `json:"remaining_seconds"`
	LastAutosaveEpoch  int64             `json:"last_autosave_epoch"`
	TakenAtEpoch       int64             `json:"taken_at_epoch"`
}

// CreateSessionRequest is the payload for creating a new session.
type CreateSessionRequest struct {
	TestID          string `json:"test_id" binding:"required,uuid"`
	DurationSeconds int    `json:"duration_seconds" binding:"required,min=60,max=28800"`
}

// SelectAnswerRequest is the payload for answering (or clearing) a question.
// A null option clears any prior answer.
type SelectAnswerRequest struct {
	QuestionID     string  `json:"question_id" binding:"required,uuid"`
	Option         *string `json:"option" binding:"omitempty,option_key"`
	ElapsedSeconds int     `json:"elapsed_seconds" binding:"min=0"`
}

// NavigateRequest is the payload for moving to another question.
type NavigateRequest struct {
	TargetIndex *int `json:"target_index" binding:"required,min=0"`
}

// ToggleReviewRequest is the payload for marking/unmarking a question.
type ToggleReviewRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
}
