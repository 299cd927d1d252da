package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/config"
	"github.com/quizora/session-engine/internal/model"
	"github.com/quizora/session-engine/internal/notify"
	"github.com/quizora/session-engine/internal/repository"
	"github.com/quizora/session-engine/internal/scoring"
	"github.com/quizora/session-engine/internal/session"
	"github.com/quizora/session-engine/internal/store"
	"github.com/quizora/session-engine/internal/submit"
	"github.com/quizora/session-engine/internal/worker"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned for an unknown session ID.
var ErrSessionNotFound = errors.New("session not found")

// SessionService owns the live session engines and their background
// coordinators. One engine per session; the engine's own mutex serializes
// foreground calls against both coordinators.
type SessionService struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*liveSession

	questions *repository.QuestionRepository
	snapshots store.SnapshotBackend
	probe     store.ConnectivityProbe
	pipeline  *submit.Pipeline
	notifier  notify.Notifier
	cfg       *config.Config
	log       zerolog.Logger
}

type liveSession struct {
	engine *session.Engine
	// cancel stops both coordinators. Nil while ticking is suspended;
	// the engine itself stays resident so resuming is loss-free.
	cancel context.CancelFunc
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	questions *repository.QuestionRepository,
	snapshots store.SnapshotBackend,
	probe store.ConnectivityProbe,
	pipeline *submit.Pipeline,
	notifier notify.Notifier,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessions:  make(map[uuid.UUID]*liveSession),
		questions: questions,
		snapshots: snapshots,
		probe:     probe,
		pipeline:  pipeline,
		notifier:  notifier,
		cfg:       cfg,
		log:       log.With().Str("component", "session_service").Logger(),
	}
}

// SessionSummary is what callers get back when creating or inspecting a
// session; question content is stripped of correct answers.
type SessionSummary struct {
	SessionID       uuid.UUID                      `json:"session_id"`
	TestID          uuid.UUID                      `json:"test_id"`
	Status          model.SessionStatus            `json:"status"`
	DurationSeconds int                            `json:"duration_seconds"`
	Questions       []model.QuestionForParticipant `json:"questions"`
}

// Create fetches the question set and builds a NotStarted session.
func (s *SessionService) Create(ctx context.Context, testID uuid.UUID, durationSeconds int) (*SessionSummary, error) {
	questions, err := s.questions.FetchQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}

	engine, err := session.New(
		testID,
		questions,
		time.Duration(durationSeconds)*time.Second,
		s.pipeline,
		session.WithWarningThresholds(s.cfg.WarningThresholds),
		session.WithPointsPerQuestion(s.cfg.PointsPerQuestion),
	)
	if err != nil {
		return nil, err
	}
	s.pipeline.Bind(engine.ID(), engine.Questions())

	s.mu.Lock()
	s.sessions[engine.ID()] = &liveSession{engine: engine}
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", engine.ID().String()).
		Str("test_id", testID.String()).
		Int("questions", len(questions)).
		Int("duration_seconds", durationSeconds).
		Msg("Session created")

	return s.summarize(engine), nil
}

// Start transitions the session to InProgress and launches both
// coordinators.
func (s *SessionService) Start(id uuid.UUID) error {
	live, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := live.engine.Start(); err != nil {
		return err
	}
	s.startCoordinators(live)
	s.log.Info().Str("session_id", id.String()).Msg("Session started")
	return nil
}

// SelectAnswer records (or clears, when option is nil) an answer.
func (s *SessionService) SelectAnswer(id, questionID uuid.UUID, option *model.OptionKey, elapsedSeconds int) error {
	live, err := s.lookup(id)
	if err != nil {
		return err
	}
	return live.engine.SelectAnswer(questionID, option, elapsedSeconds)
}

// Navigate moves the session to another question.
func (s *SessionService) Navigate(id uuid.UUID, targetIndex int) error {
	live, err := s.lookup(id)
	if err != nil {
		return err
	}
	return live.engine.Navigate(targetIndex)
}

// ToggleReview flips the review mark on a question.
func (s *SessionService) ToggleReview(id, questionID uuid.UUID) error {
	live, err := s.lookup(id)
	if err != nil {
		return err
	}
	return live.engine.ToggleMarkForReview(questionID)
}

// State returns a consistent snapshot, which covers page reloads: the
// client gets its answers, marks, position and the authoritative remaining
// time in one read.
func (s *SessionService) State(id uuid.UUID) (*model.Snapshot, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return live.engine.Snapshot(time.Now()), nil
}

// Submit finalizes the session on behalf of the participant. The expiry
// coordinator calls the engine directly with forced=true; both paths meet
// at the same compare-and-swap on status.
func (s *SessionService) Submit(ctx context.Context, id uuid.UUID) (*scoring.Stats, *model.SubmissionReceipt, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	stats, submitErr := live.engine.Submit(ctx, false)
	if submitErr != nil && stats == nil {
		return nil, nil, submitErr
	}

	// Terminal either way; ticking is no longer needed.
	s.suspendLocked(id)
	if submitErr == nil {
		// Completed for good; the retry path keeps Failed sessions bound.
		s.pipeline.Release(id)
	}
	_, receipt := live.engine.Result()
	return stats, receipt, submitErr
}

// Suspend stops both coordinators without discarding the session. The
// deadline keeps running — remaining time derives from the start
// timestamp, so resuming later is exact.
func (s *SessionService) Suspend(id uuid.UUID) error {
	if _, err := s.lookup(id); err != nil {
		return err
	}
	s.suspendLocked(id)
	s.log.Info().Str("session_id", id.String()).Msg("Coordinators suspended")
	return nil
}

// Resume restarts the coordinators of an InProgress session.
func (s *SessionService) Resume(id uuid.UUID) error {
	live, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !live.engine.InProgress() {
		return session.ErrInvalidTransition
	}

	s.mu.Lock()
	alreadyTicking := live.cancel != nil
	s.mu.Unlock()
	if alreadyTicking {
		return nil
	}

	s.startCoordinators(live)
	s.log.Info().Str("session_id", id.String()).Msg("Coordinators resumed")
	return nil
}

// Recover rebuilds a session from its last autosaved snapshot after a
// process restart. An already-resident session is returned as-is; a terminal
// or mid-submission snapshot cannot be revived.
func (s *SessionService) Recover(ctx context.Context, id uuid.UUID) (*model.Snapshot, error) {
	if live, err := s.lookup(id); err == nil {
		return live.engine.Snapshot(time.Now()), nil
	}

	snap, err := s.snapshots.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	questions, err := s.questions.FetchQuestions(ctx, snap.TestID)
	if err != nil {
		return nil, err
	}

	engine, err := session.Restore(
		snap,
		questions,
		s.pipeline,
		session.WithWarningThresholds(s.cfg.WarningThresholds),
		session.WithPointsPerQuestion(s.cfg.PointsPerQuestion),
	)
	if err != nil {
		return nil, err
	}
	s.pipeline.Bind(engine.ID(), engine.Questions())

	live := &liveSession{engine: engine}
	s.mu.Lock()
	s.sessions[engine.ID()] = live
	s.mu.Unlock()

	if engine.InProgress() {
		s.startCoordinators(live)
	}

	s.log.Info().
		Str("session_id", id.String()).
		Str("status", string(snap.Status)).
		Int("answers", len(snap.Answers)).
		Msg("Session recovered from snapshot")

	return engine.Snapshot(time.Now()), nil
}

// Summary returns the participant-facing view of a session.
func (s *SessionService) Summary(id uuid.UUID) (*SessionSummary, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.summarize(live.engine), nil
}

// Engine exposes the underlying engine; the WebSocket handler uses it to
// validate subscriptions.
func (s *SessionService) Engine(id uuid.UUID) (*session.Engine, error) {
	live, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return live.engine, nil
}

func (s *SessionService) lookup(id uuid.UUID) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return live, nil
}

func (s *SessionService) startCoordinators(live *liveSession) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if live.cancel != nil {
		live.cancel()
	}
	live.cancel = cancel
	s.mu.Unlock()

	timekeeper := worker.NewTimekeeperWorker(live.engine, s.notifier, s.cfg.TimekeeperTick, s.log)
	autosave := worker.NewAutosaveWorker(live.engine, s.snapshots, s.probe, s.cfg.AutosaveInterval, s.log)

	go timekeeper.Start(ctx)
	go autosave.Start(ctx)
}

func (s *SessionService) suspendLocked(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.sessions[id]; ok && live.cancel != nil {
		live.cancel()
		live.cancel = nil
	}
}

func (s *SessionService) summarize(engine *session.Engine) *SessionSummary {
	questions := engine.Questions()
	stripped := make([]model.QuestionForParticipant, 0, len(questions))
	for _, q := range questions {
		stripped = append(stripped, q.ForParticipant())
	}
	snap := engine.Snapshot(time.Now())
	return &SessionSummary{
		SessionID:       engine.ID(),
		TestID:          engine.TestID(),
		Status:          snap.Status,
		DurationSeconds: snap.DurationSeconds,
		Questions:       stripped,
	}
}
