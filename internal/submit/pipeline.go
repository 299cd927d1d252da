// Package submit implements the submission pipeline: building per-question
// outcomes, persisting the aggregate record and outcome batches, and
// falling back to a local durable backup when the critical write fails.
package submit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/model"
	"github.com/quizora/session-engine/internal/scoring"
	"github.com/quizora/session-engine/internal/session"
	"github.com/rs/zerolog"
)

// DefaultOutcomeBatchSize bounds how many per-question rows are persisted
// per store call.
const DefaultOutcomeBatchSize = 50

// SubmissionStore persists final submission data.
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, record *model.SubmissionRecord) error
	SaveOutcomes(ctx context.Context, sessionID uuid.UUID, outcomes []model.QuestionOutcome) error
}

// BackupStore is the local durable fallback, written only when the
// aggregate record cannot be persisted. It is read back by a separate
// recovery flow.
type BackupStore interface {
	Write(ctx context.Context, sessionID uuid.UUID, payload []byte) error
}

// BackupPayload is what lands in the backup store: everything needed to
// replay the submission later.
type BackupPayload struct {
	Snapshot *model.Snapshot `json:"snapshot"`
	Stats    *scoring.Stats  `json:"stats"`
	Forced   bool            `json:"forced"`
	SavedAt  time.Time       `json:"saved_at"`
}

// Pipeline runs the finalization protocol for one frozen submission.
type Pipeline struct {
	store     SubmissionStore
	backup    BackupStore
	mu        sync.RWMutex
	questions map[uuid.UUID][]model.Question
	batchSize int
	now       func() time.Time
	log       zerolog.Logger
}

// NewPipeline creates a Pipeline. batchSize <= 0 falls back to
// DefaultOutcomeBatchSize.
func NewPipeline(store SubmissionStore, backup BackupStore, batchSize int, log zerolog.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = DefaultOutcomeBatchSize
	}
	return &Pipeline{
		store:     store,
		backup:    backup,
		questions: make(map[uuid.UUID][]model.Question),
		batchSize: batchSize,
		now:       time.Now,
		log:       log.With().Str("component", "submission_pipeline").Logger(),
	}
}

// Bind registers the question set the pipeline needs to expand outcomes for
// a session. Called once when the session is created.
func (p *Pipeline) Bind(sessionID uuid.UUID, questions []model.Question) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.questions[sessionID] = questions
}

// Release drops the question set bound to a session.
func (p *Pipeline) Release(sessionID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.questions, sessionID)
}

// Finalize persists the frozen submission. The aggregate record is the
// critical write: on its failure the full snapshot plus stats are written
// to the backup store and a PersistenceError is returned. Outcome batches
// that fail afterwards are logged and counted but do not abort the
// pipeline.
func (p *Pipeline) Finalize(ctx context.Context, snap *model.Snapshot, stats *scoring.Stats, forced bool) (*model.SubmissionReceipt, error) {
	p.mu.RLock()
	questions := p.questions[snap.SessionID]
	p.mu.RUnlock()
	outcomes := BuildOutcomes(questions, snap.Answers)

	breakdown, err := json.Marshal(stats.Subjects)
	if err != nil {
		breakdown = []byte("[]")
	}
	record := &model.SubmissionRecord{
		SessionID:        snap.SessionID,
		TestID:           snap.TestID,
		SubmittedAt:      p.now(),
		Forced:           forced,
		TotalQuestions:   stats.TotalQuestions,
		Attempted:        stats.Attempted,
		Correct:          stats.Correct,
		Incorrect:        stats.Incorrect,
		Skipped:          stats.Skipped,
		Score:            stats.Score,
		Percentage:       stats.Percentage,
		SubjectBreakdown: breakdown,
	}

	if err := p.store.SaveSubmission(ctx, record); err != nil {
		p.log.Error().Err(err).
			Str("session_id", snap.SessionID.String()).
			Msg("Aggregate submission write failed, writing local backup")

		receipt := &model.SubmissionReceipt{}
		if backupErr := p.writeBackup(ctx, snap, stats, forced); backupErr != nil {
			p.log.Error().Err(backupErr).
				Str("session_id", snap.SessionID.String()).
				Msg("Local backup write failed")
		} else {
			receipt.BackupWritten = true
		}
		return receipt, &session.PersistenceError{Op: "save_submission", Err: err}
	}

	receipt := &model.SubmissionReceipt{}
	for start := 0; start < len(outcomes); start += p.batchSize {
		end := start + p.batchSize
		if end > len(outcomes) {
			end = len(outcomes)
		}
		if err := p.store.SaveOutcomes(ctx, snap.SessionID, outcomes[start:end]); err != nil {
			receipt.FailedOutcomeBatches++
			p.log.Warn().Err(err).
				Str("session_id", snap.SessionID.String()).
				Int("batch_start", start).
				Int("batch_size", end-start).
				Msg("Outcome batch write failed, continuing")
		}
	}

	return receipt, nil
}

func (p *Pipeline) writeBackup(ctx context.Context, snap *model.Snapshot, stats *scoring.Stats, forced bool) error {
	payload, err := json.Marshal(BackupPayload{
		Snapshot: snap,
		Stats:    stats,
		Forced:   forced,
		SavedAt:  p.now(),
	})
	if err != nil {
		return err
	}
	return p.backup.Write(ctx, snap.SessionID, payload)
}

// BuildOutcomes expands a frozen snapshot into one outcome row per
// question, unanswered questions included.
func BuildOutcomes(questions []model.Question, answers []model.AnswerRecord) []model.QuestionOutcome {
	byID := make(map[uuid.UUID]model.AnswerRecord, len(answers))
	for _, rec := range answers {
		byID[rec.QuestionID] = rec
	}

	outcomes := make([]model.QuestionOutcome, 0, len(questions))
	for _, q := range questions {
		outcome := model.QuestionOutcome{
			QuestionID:    q.ID,
			OrderNum:      q.OrderNum,
			Subject:       q.Subject,
			Topic:         q.Topic,
			Difficulty:    q.Difficulty,
			CorrectOption: q.CorrectOption,
		}
		if rec, ok := byID[q.ID]; ok && rec.SelectedOption != nil {
			selected := *rec.SelectedOption
			outcome.SelectedOption = &selected
			outcome.IsAttempted = true
			outcome.IsCorrect = rec.IsCorrect
			outcome.TimeSpentSeconds = rec.TimeSpentSeconds
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
