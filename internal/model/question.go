package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// OptionKey identifies one of the fixed answer choices of a question.
type OptionKey string

const (
	OptionA OptionKey = "A"
	OptionB OptionKey = "B"
	OptionC OptionKey = "C"
	OptionD OptionKey = "D"
)

// Valid reports whether k is a member of the fixed option-key set.
func (k OptionKey) Valid() bool {
	switch k {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

// Difficulty enumerates question difficulty levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Question is a single multiple-choice question of a test. Questions are
// immutable once a session is created; the engine never interprets
// QuestionText or Options.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	TestID        uuid.UUID       `json:"test_id"`
	OrderNum      int             `json:"order_num"`
	Subject       string          `json:"subject"`
	Topic         string          `json:"topic"`
	Difficulty    Difficulty      `json:"difficulty"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options"`
	CorrectOption OptionKey       `json:"correct_option"`
}

// QuestionForParticipant is a question without the correct answer, sent to
// the participant taking the session.
type QuestionForParticipant struct {
	ID           uuid.UUID       `json:"id"`
	OrderNum     int             `json:"order_num"`
	Subject      string          `json:"subject"`
	Topic        string          `json:"topic"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options"`
}

// ForParticipant strips the correct option from q.
func (q Question) ForParticipant() QuestionForParticipant {
	return QuestionForParticipant{
		ID:           q.ID,
		OrderNum:     q.OrderNum,
		Subject:      q.Subject,
		Topic:        q.Topic,
		QuestionText: q.QuestionText,
		Options:      q.Options,
	}
}
