// Package session implements the timed assessment session state machine:
// NotStarted → InProgress → Submitting → {Completed | Failed}.
//
// One Engine instance is mutated from up to three actors — the foreground
// caller, the time/expiry coordinator, and the autosave coordinator. A
// single mutex serializes all of them; the only blocking I/O (submission
// persistence) runs outside the lock against a frozen snapshot.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/model"
	"github.com/quizora/session-engine/internal/scoring"
)

// navigationHistoryCap bounds the navigation event log; the oldest entries
// are dropped beyond it. The history feeds analytics only.
const navigationHistoryCap = 64

// Finalizer persists a frozen submission. Implemented by the submission
// pipeline; the engine only sees this boundary.
type Finalizer interface {
	Finalize(ctx context.Context, snap *model.Snapshot, stats *scoring.Stats, forced bool) (*model.SubmissionReceipt, error)
}

// Engine is one participant's timed attempt at a fixed question set.
type Engine struct {
	mu sync.Mutex

	id        uuid.UUID
	testID    uuid.UUID
	questions []model.Question
	byID      map[uuid.UUID]int
	duration  time.Duration

	now       func() time.Time
	finalizer Finalizer
	points    int

	status         model.SessionStatus
	startedAt      time.Time
	currentIndex   int
	visitStartedAt time.Time
	answers        map[uuid.UUID]model.AnswerRecord
	marked         map[uuid.UUID]struct{}
	history        []model.NavigationEvent
	attempted      int
	correct        int
	thresholds     []time.Duration
	fired          map[time.Duration]bool
	lastAutosaveAt time.Time

	// Frozen at the first Submit and reused verbatim on a retry after
	// Failed, so both attempts report identical stats.
	frozenSnap  *model.Snapshot
	frozenStats *scoring.Stats
	receipt     *model.SubmissionReceipt
	retried     bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall-clock source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithWarningThresholds overrides DefaultWarningThresholds.
func WithWarningThresholds(thresholds []time.Duration) Option {
	return func(e *Engine) { e.thresholds = thresholds }
}

// WithPointsPerQuestion overrides scoring.DefaultPointsPerQuestion.
func WithPointsPerQuestion(points int) Option {
	return func(e *Engine) { e.points = points }
}

// New creates a NotStarted session over the given question set. The
// question set must be non-empty; it is copied and sorted by order number.
func New(testID uuid.UUID, questions []model.Question, duration time.Duration, finalizer Finalizer, opts ...Option) (*Engine, error) {
	if len(questions) == 0 {
		return nil, errors.New("session requires at least one question")
	}
	if duration <= 0 {
		return nil, errors.New("session duration must be positive")
	}

	ordered := make([]model.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderNum < ordered[j].OrderNum
	})

	byID := make(map[uuid.UUID]int, len(ordered))
	for i, q := range ordered {
		byID[q.ID] = i
	}

	e := &Engine{
		id:         uuid.New(),
		testID:     testID,
		questions:  ordered,
		byID:       byID,
		duration:   duration,
		now:        time.Now,
		finalizer:  finalizer,
		points:     scoring.DefaultPointsPerQuestion,
		status:     model.SessionStatusNotStarted,
		answers:    make(map[uuid.UUID]model.AnswerRecord),
		marked:     make(map[uuid.UUID]struct{}),
		thresholds: DefaultWarningThresholds,
		fired:      make(map[time.Duration]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Restore rebuilds an engine from an autosaved snapshot and the same
// question set. Terminal snapshots cannot be restored: a finished attempt
// stays finished.
func Restore(snap *model.Snapshot, questions []model.Question, finalizer Finalizer, opts ...Option) (*Engine, error) {
	if snap.Status.Terminal() || snap.Status == model.SessionStatusSubmitting {
		return nil, ErrInvalidTransition
	}

	e, err := New(snap.TestID, questions, time.Duration(snap.DurationSeconds)*time.Second, finalizer, opts...)
	if err != nil {
		return nil, err
	}

	e.id = snap.SessionID
	e.status = snap.Status
	if snap.StartedAtEpoch > 0 {
		e.startedAt = time.Unix(snap.StartedAtEpoch, 0)
		e.visitStartedAt = e.startedAt
	}
	if snap.CurrentIndex < 0 || snap.CurrentIndex >= len(e.questions) {
		return nil, ErrOutOfRange
	}
	e.currentIndex = snap.CurrentIndex
	e.lastAutosaveAt = time.Unix(snap.LastAutosaveEpoch, 0)

	for _, rec := range snap.Answers {
		if _, ok := e.byID[rec.QuestionID]; !ok {
			return nil, ErrUnknownQuestion
		}
		if rec.SelectedOption == nil {
			continue
		}
		e.answers[rec.QuestionID] = rec
		e.attempted++
		if rec.IsCorrect {
			e.correct++
		}
	}
	for _, qid := range snap.MarkedForReview {
		if _, ok := e.byID[qid]; !ok {
			return nil, ErrUnknownQuestion
		}
		e.marked[qid] = struct{}{}
	}
	e.history = append(e.history, snap.NavigationHistory...)
	for _, seconds := range snap.WarningsFired {
		e.fired[time.Duration(seconds)*time.Second] = true
	}

	return e, nil
}

// ID returns the session identifier.
func (e *Engine) ID() uuid.UUID { return e.id }

// TestID returns the test this session is an attempt at.
func (e *Engine) TestID() uuid.UUID { return e.testID }

// Questions returns the ordered question set. The slice is shared
// read-only; callers must not mutate it.
func (e *Engine) Questions() []model.Question { return e.questions }

// Status returns the current session status.
func (e *Engine) Status() model.SessionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// InProgress reports whether the session accepts mutation.
func (e *Engine) InProgress() bool {
	return e.Status() == model.SessionStatusInProgress
}

// Start transitions NotStarted → InProgress and anchors the deadline by
// recording the start timestamp exactly once.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.SessionStatusNotStarted {
		return ErrInvalidTransition
	}
	e.startedAt = e.now()
	e.visitStartedAt = e.startedAt
	e.status = model.SessionStatusInProgress
	return nil
}

// SelectAnswer records the participant's answer to a question, replacing
// any previous record and adjusting the aggregate counters by delta. A nil
// option clears the prior answer instead of recording one.
func (e *Engine) SelectAnswer(questionID uuid.UUID, option *model.OptionKey, elapsedSeconds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.SessionStatusInProgress {
		return ErrInvalidTransition
	}
	idx, ok := e.byID[questionID]
	if !ok {
		return ErrUnknownQuestion
	}

	prev, had := e.answers[questionID]

	if option == nil {
		if had {
			delete(e.answers, questionID)
			e.attempted--
			if prev.IsCorrect {
				e.correct--
			}
		}
		return nil
	}

	isCorrect := *option == e.questions[idx].CorrectOption
	if !had {
		e.attempted++
	} else if prev.IsCorrect {
		e.correct--
	}
	if isCorrect {
		e.correct++
	}

	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}
	selected := *option
	e.answers[questionID] = model.AnswerRecord{
		QuestionID:       questionID,
		SelectedOption:   &selected,
		IsCorrect:        isCorrect,
		TimeSpentSeconds: elapsedSeconds,
		AnsweredAtEpoch:  e.now().Unix(),
	}
	return nil
}

// Navigate moves to the question at targetIndex. Out-of-range indexes are
// rejected, never clamped. The per-visit timer resets for the new question.
func (e *Engine) Navigate(targetIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.SessionStatusInProgress {
		return ErrInvalidTransition
	}
	if targetIndex < 0 || targetIndex >= len(e.questions) {
		return ErrOutOfRange
	}

	now := e.now()
	event := model.NavigationEvent{
		From:    e.currentIndex,
		To:      targetIndex,
		AtEpoch: now.Unix(),
	}
	if len(e.history) >= navigationHistoryCap {
		copy(e.history, e.history[1:])
		e.history[len(e.history)-1] = event
	} else {
		e.history = append(e.history, event)
	}

	e.currentIndex = targetIndex
	e.visitStartedAt = now
	return nil
}

// CurrentIndex returns the position of the question the participant is on.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

// VisitElapsed returns how long the current question has been on screen.
func (e *Engine) VisitElapsed(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.visitStartedAt.IsZero() {
		return 0
	}
	if d := now.Sub(e.visitStartedAt); d > 0 {
		return d
	}
	return 0
}

// ToggleMarkForReview flips the review annotation on a question. Marks have
// no scoring effect.
func (e *Engine) ToggleMarkForReview(questionID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.SessionStatusInProgress {
		return ErrInvalidTransition
	}
	if _, ok := e.byID[questionID]; !ok {
		return ErrUnknownQuestion
	}
	if _, marked := e.marked[questionID]; marked {
		delete(e.marked, questionID)
	} else {
		e.marked[questionID] = struct{}{}
	}
	return nil
}

// Remaining returns the time left before the deadline. It is a pure read:
// observing zero here never submits — a coordinator must call Submit.
func (e *Engine) Remaining(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startedAt.IsZero() {
		return e.duration
	}
	return RemainingTime(e.startedAt, e.duration, now)
}

// DueWarnings returns the warning thresholds newly crossed as of now and
// marks them fired. Each threshold fires at most once per session, even
// across coordinator restarts.
func (e *Engine) DueWarnings(now time.Time) []time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status != model.SessionStatusInProgress {
		return nil
	}
	remaining := RemainingTime(e.startedAt, e.duration, now)
	var due []time.Duration
	for _, t := range e.thresholds {
		if remaining <= t && !e.fired[t] {
			e.fired[t] = true
			due = append(due, t)
		}
	}
	return due
}

// MarkAutosaved records the time of the last successful autosave.
func (e *Engine) MarkAutosaved(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAutosaveAt = at
}

// Snapshot copies the session's mutable state under the lock. The result
// is safe to persist without further coordination.
func (e *Engine) Snapshot(now time.Time) *model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(now)
}

func (e *Engine) snapshotLocked(now time.Time) *model.Snapshot {
	snap := &model.Snapshot{
		SessionID:       e.id,
		TestID:          e.testID,
		Status:          e.status,
		DurationSeconds: int(e.duration / time.Second),
		CurrentIndex:    e.currentIndex,
		TakenAtEpoch:    now.Unix(),
	}
	if !e.startedAt.IsZero() {
		snap.StartedAtEpoch = e.startedAt.Unix()
		snap.ElapsedSeconds = int(ElapsedTime(e.startedAt, e.duration, now) / time.Second)
		snap.RemainingSeconds = int(RemainingTime(e.startedAt, e.duration, now) / time.Second)
	} else {
		snap.RemainingSeconds = int(e.duration / time.Second)
	}
	if !e.lastAutosaveAt.IsZero() {
		snap.LastAutosaveEpoch = e.lastAutosaveAt.Unix()
	}

	snap.Answers = make([]model.AnswerRecord, 0, len(e.answers))
	for _, q := range e.questions {
		if rec, ok := e.answers[q.ID]; ok {
			selected := *rec.SelectedOption
			rec.SelectedOption = &selected
			snap.Answers = append(snap.Answers, rec)
		}
	}

	snap.MarkedForReview = make([]uuid.UUID, 0, len(e.marked))
	for _, q := range e.questions {
		if _, ok := e.marked[q.ID]; ok {
			snap.MarkedForReview = append(snap.MarkedForReview, q.ID)
		}
	}

	snap.NavigationHistory = append([]model.NavigationEvent(nil), e.history...)

	for _, t := range e.thresholds {
		if e.fired[t] {
			snap.WarningsFired = append(snap.WarningsFired, int(t/time.Second))
		}
	}
	return snap
}

// Submit freezes the session and runs the submission pipeline. Exactly one
// concurrent caller proceeds past InProgress → Submitting; the loser gets
// ErrAlreadySubmitting and does nothing further. After Completed, further
// calls get ErrInvalidTransition with no additional writes. After Failed,
// exactly one retry is permitted, reusing the stats computed the first
// time.
func (e *Engine) Submit(ctx context.Context, forced bool) (*scoring.Stats, error) {
	e.mu.Lock()
	switch e.status {
	case model.SessionStatusSubmitting:
		e.mu.Unlock()
		return nil, ErrAlreadySubmitting
	case model.SessionStatusCompleted, model.SessionStatusNotStarted:
		e.mu.Unlock()
		return nil, ErrInvalidTransition
	case model.SessionStatusFailed:
		if e.retried {
			e.mu.Unlock()
			return nil, ErrInvalidTransition
		}
		e.retried = true
		e.status = model.SessionStatusSubmitting
	case model.SessionStatusInProgress:
		e.status = model.SessionStatusSubmitting
		e.frozenSnap = e.snapshotLocked(e.now())
		e.frozenSnap.Status = model.SessionStatusSubmitting
		e.frozenStats = nil
	}
	snap := e.frozenSnap
	stats := e.frozenStats
	e.mu.Unlock()

	// Scoring and persistence run outside the lock; the snapshot is
	// frozen so foreground reads stay unblocked.
	if stats == nil {
		stats = scoring.Evaluate(e.questions, answerMap(snap.Answers), e.points)
	}

	receipt, err := e.finalizer.Finalize(ctx, snap, stats, forced)

	e.mu.Lock()
	e.frozenStats = stats
	e.receipt = receipt
	if err != nil {
		e.status = model.SessionStatusFailed
	} else {
		e.status = model.SessionStatusCompleted
	}
	e.mu.Unlock()

	if err != nil {
		return stats, err
	}
	return stats, nil
}

// Result returns the stats and receipt of a finished submission, or nil if
// the session has not reached a terminal state.
func (e *Engine) Result() (*scoring.Stats, *model.SubmissionReceipt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.status.Terminal() {
		return nil, nil
	}
	return e.frozenStats, e.receipt
}

func answerMap(records []model.AnswerRecord) map[uuid.UUID]model.AnswerRecord {
	answers := make(map[uuid.UUID]model.AnswerRecord, len(records))
	for _, rec := range records {
		answers[rec.QuestionID] = rec
	}
	return answers
}
