package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quizora/session-engine/internal/model"
	"github.com/quizora/session-engine/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually-advanced wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeFinalizer implements Finalizer with scriptable failures.
type fakeFinalizer struct {
	mu        sync.Mutex
	calls     int
	errs      []error // consumed in order; nil entry means success
	block     chan struct{}
	lastSnap  *model.Snapshot
	lastStats *scoring.Stats
}

func (f *fakeFinalizer) Finalize(_ context.Context, snap *model.Snapshot, stats *scoring.Stats, _ bool) (*model.SubmissionReceipt, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSnap = snap
	f.lastStats = stats
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return &model.SubmissionReceipt{BackupWritten: true}, err
		}
	}
	return &model.SubmissionReceipt{}, nil
}

func (f *fakeFinalizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func makeQuestions(t *testing.T, n int) []model.Question {
	t.Helper()
	testID := uuid.New()
	questions := make([]model.Question, 0, n)
	subjects := []string{"Math", "Physics"}
	for i := 0; i < n; i++ {
		questions = append(questions, model.Question{
			ID:            uuid.New(),
			TestID:        testID,
			OrderNum:      i,
			Subject:       subjects[i%len(subjects)],
			Topic:         "general",
			Difficulty:    model.DifficultyMedium,
			QuestionText:  "q",
			Options:       json.RawMessage(`{"A":"1","B":"2","C":"3","D":"4"}`),
			CorrectOption: model.OptionB,
		})
	}
	return questions
}

func newTestEngine(t *testing.T, n int, clock *fakeClock, finalizer Finalizer) *Engine {
	t.Helper()
	questions := makeQuestions(t, n)
	e, err := New(questions[0].TestID, questions, 10*time.Minute, finalizer, WithClock(clock.Now))
	require.NoError(t, err)
	return e
}

func opt(k model.OptionKey) *model.OptionKey { return &k }

func TestNewRejectsEmptyQuestionSet(t *testing.T) {
	_, err := New(uuid.New(), nil, time.Minute, &fakeFinalizer{})
	require.Error(t, err)
}

func TestStartTransitions(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, 3, clock, &fakeFinalizer{})

	assert.Equal(t, model.SessionStatusNotStarted, e.Status())

	// Mutations before Start are rejected.
	q := e.Questions()[0]
	assert.ErrorIs(t, e.SelectAnswer(q.ID, opt(model.OptionB), 5), ErrInvalidTransition)
	assert.ErrorIs(t, e.Navigate(1), ErrInvalidTransition)
	assert.ErrorIs(t, e.ToggleMarkForReview(q.ID), ErrInvalidTransition)

	require.NoError(t, e.Start())
	assert.Equal(t, model.SessionStatusInProgress, e.Status())

	// Start is not idempotent: the second call is an error.
	assert.ErrorIs(t, e.Start(), ErrInvalidTransition)
}

func TestRemainingDerivesFromStart(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	e := newTestEngine(t, 3, clock, &fakeFinalizer{})
	require.NoError(t, e.Start())

	assert.Equal(t, 10*time.Minute, e.Remaining(clock.Now()))

	// An arbitrary pause in observation changes nothing: remaining is
	// recomputed, not counted down.
	clock.Advance(7 * time.Minute)
	assert.Equal(t, 3*time.Minute, e.Remaining(clock.Now()))

	clock.Advance(10 * time.Minute)
	assert.Equal(t, time.Duration(0), e.Remaining(clock.Now()))
}

func TestSelectAnswerReplaceSemantics(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	fin := &fakeFinalizer{}
	e := newTestEngine(t, 4, clock, fin)
	require.NoError(t, e.Start())

	q := e.Questions()[0] // correct option is B

	// Incorrect first, corrected later: the aggregates must reflect only
	// the final state, not both writes.
	require.NoError(t, e.SelectAnswer(q.ID, opt(model.OptionA), 10))
	require.NoError(t, e.SelectAnswer(q.ID, opt(model.OptionB), 25))

	stats, err := e.Submit(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Attempted)
	assert.Equal(t, 1, stats.Correct)
	assert.Equal(t, 0, stats.Incorrect)

	// The surviving record carries the latest write.
	require.Len(t, fin.lastSnap.Answers, 1)
	rec := fin.lastSnap.Answers[0]
	assert.Equal(t, model.OptionB, *rec.SelectedOption)
	assert.True(t, rec.IsCorrect)
	assert.Equal(t, 25, rec.TimeSpentSeconds)
}

func TestSelectAnswerDowngradeAdjustsCounters(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, 4, clock, &fakeFinalizer{})
	require.NoError(t, e.Start())

	q := e.Questions()[0]
	require.NoError(t, e.SelectAnswer(q.ID, opt(model.OptionB), 5)) // correct
	require.NoError(t, e.SelectAnswer(q.ID, opt(model.OptionC), 5)) // now wrong

	stats, err := e.Submit(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Attempted)
	assert.Equal(t, 0, stats.Correct)
	assert.Equal(t, 1, stats.Incorrect)
}

func TestSelectAnswerNilOptionClears(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, 4, clock, &fakeFinalizer{})
	require.NoError(t, e.Start())

	q := e.Questions()[0]
	require.NoError(t, e.SelectAnswer(q.ID, opt(model.OptionB), 5))
	require.NoError(t, e.SelectAnswer(q.ID, nil, 0))

	snap := e.Snapshot(clock.Now())
	assert.Empty(t, snap.Answers)

	// Clearing an already-clear question is a no-op, not an error.
	require.NoError(t, e.SelectAnswer(q.ID, nil, 0))
}

func TestSelectAnswerUnknownQuestion(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, 4, clock, &fakeFinalizer{})
	require.NoError(t, e.Start())

	err := e.SelectAnswer(uuid.New(), opt(model.OptionA), 5)
	assert.ErrorIs(t, err, ErrUnknownQuestion)

	snap := e.Snapshot(clock.Now())
	assert.Empty(t, snap.Answers)
}

func TestNavigate(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, 5, clock, &fakeFinalizer{})
	require.NoError(t, e.Start())

	// Out-of-range is rejected, never clamped.
	assert.ErrorIs(t, e.Navigate(-1), ErrOutOfRange)
	assert.ErrorIs(t, e.Navigate(5), ErrOutOfRange)
	assert.Equal(t, 0, e.CurrentIndex())

	require.NoError(t, e.Navigate(3))
	assert.Equal(t, 3, e.CurrentIndex())

	snap := e.Snapshot(clock.Now())
	require.Len(t, snap.NavigationHistory, 1)
	assert.Equal(t, 0, snap.NavigationHistory[0].From)
	assert.Equal(t, 3, snap.NavigationHistory[0].To)
}

func TestNavigateHistoryBounded(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, 2, clock, &fakeFinalizer{})
	require.NoError(t, e.Start())

	for i := 0; i < navigationHistoryCap+10; i++ {
		require.NoError(t, e.Navigate(i%2))
	}

	snap := e.Snapshot(clock.Now())
	assert.Len(t, snap.NavigationHistory, navigationHistoryCap)
}

func TestNavigateResetsVisitTimer(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, 3, clock, &fakeFinalizer{})
	require.NoError(t, e.Start())

	clock.Advance(40 * time.Second)
	assert.Equal(t, 40*time.Second, e.VisitElapsed(clock.Now()))

	require.NoError(t, e.Navigate(1))
	assert.Equal(t, time.Duration(0), e.VisitElapsed(clock.Now()))
}

func TestToggleMarkForReview(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	e := newTestEngine(t, 3, clock, &fakeFinalizer{})
	require.NoError(t, e.Start())

	q := e.Questions()[1]
	assert.ErrorIs(t, e.ToggleMarkForReview(uuid.New()), ErrUnknownQuestion)

	require.NoError(t, e.ToggleMarkForReview(q.ID))
	snap := e.Snapshot(clock.Now())
	assert.Equal(t, []uuid.UUID{q.ID}, snap.MarkedForReview)

	require.NoError(t, e.ToggleMarkForReview(q.ID))
	snap = e.Snapshot(clock.Now())
	assert.Empty(t, snap.MarkedForReview)
}

func TestDueWarningsEdgeTriggered(t *testing.T) {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	clock := newFakeClock(start)
	questions := makeQuestions(t, 3)
	e, err := New(questions[0].TestID, questions, 15*time.Minute, &fakeFinalizer{}, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, e.Start())

	assert.Empty(t, e.DueWarnings(clock.Now()))

	// Cross the 10-minute mark.
	clock.Advance(5*time.Minute + time.Second)
	due := e.DueWarnings(clock.Now())
	assert.Equal(t, []time.Duration{10 * time.Minute}, due)

	// Repeated ticks below the threshold do not refire: edge, not level.
	assert.Empty(t, e.DueWarnings(clock.Now()))
	clock.Advance(time.Second)
	assert.Empty(t, e.DueWarnings(clock.Now()))

	// Jumping straight past two thresholds fires both at once.
	clock.Advance(9 * time.Minute)
	due = e.DueWarnings(clock.Now())
	assert.ElementsMatch(t, []time.Duration{5 * time.Minute, time.Minute}, due)
}

func TestSubmitIdempotentAfterCompleted(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	fin := &fakeFinalizer{}
	e := newTestEngine(t, 3, clock, fin)
	require.NoError(t, e.Start())

	_, err := e.Submit(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, e.Status())

	// Terminal state: no resurrection and no additional writes.
	_, err = e.Submit(context.Background(), false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 1, fin.callCount())

	assert.ErrorIs(t, e.SelectAnswer(e.Questions()[0].ID, opt(model.OptionA), 1), ErrInvalidTransition)
	assert.ErrorIs(t, e.Navigate(1), ErrInvalidTransition)
}

func TestSubmitConcurrentSingleWinner(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	fin := &fakeFinalizer{block: make(chan struct{})}
	e := newTestEngine(t, 3, clock, fin)
	require.NoError(t, e.Start())

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := e.Submit(context.Background(), false)
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := e.Submit(context.Background(), true)
		errs <- err
	}()

	// The loser must return ErrAlreadySubmitting while the winner is
	// still blocked inside the pipeline.
	loserErr := <-errs
	assert.ErrorIs(t, loserErr, ErrAlreadySubmitting)

	close(fin.block)
	winnerErr := <-errs
	wg.Wait()

	assert.NoError(t, winnerErr)
	assert.Equal(t, 1, fin.callCount())
	assert.Equal(t, model.SessionStatusCompleted, e.Status())
}

func TestSubmitRetryAfterFailureReusesStats(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	storeErr := errors.New("connection refused")
	fin := &fakeFinalizer{errs: []error{storeErr, nil}}
	e := newTestEngine(t, 3, clock, fin)
	require.NoError(t, e.Start())
	require.NoError(t, e.SelectAnswer(e.Questions()[0].ID, opt(model.OptionB), 5))

	firstStats, err := e.Submit(context.Background(), false)
	require.ErrorIs(t, err, storeErr)
	assert.Equal(t, model.SessionStatusFailed, e.Status())
	require.NotNil(t, firstStats)

	// Exactly one retry is allowed; it reuses the frozen stats.
	retryStats, err := e.Submit(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, e.Status())
	assert.Equal(t, firstStats, retryStats)
	assert.Equal(t, 2, fin.callCount())

	_, err = e.Submit(context.Background(), false)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 2, fin.callCount())
}

func TestSnapshotRoundTrip(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	questions := makeQuestions(t, 6)
	e, err := New(questions[0].TestID, questions, 10*time.Minute, &fakeFinalizer{}, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, e.Start())

	require.NoError(t, e.SelectAnswer(questions[0].ID, opt(model.OptionB), 12))
	require.NoError(t, e.SelectAnswer(questions[1].ID, opt(model.OptionA), 7))
	require.NoError(t, e.Navigate(2))
	require.NoError(t, e.ToggleMarkForReview(questions[2].ID))
	clock.Advance(2 * time.Minute)

	snap := e.Snapshot(clock.Now())

	restored, err := Restore(snap, questions, &fakeFinalizer{}, WithClock(clock.Now))
	require.NoError(t, err)

	// A session rebuilt from the snapshot scores identically to the
	// live one at that instant.
	liveFin, restoredFin := &fakeFinalizer{}, &fakeFinalizer{}
	e.finalizer = liveFin
	restored.finalizer = restoredFin

	liveStats, err := e.Submit(context.Background(), false)
	require.NoError(t, err)
	restoredStats, err := restored.Submit(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, liveStats, restoredStats)
	assert.Equal(t, snap.CurrentIndex, restored.CurrentIndex())
	assert.Equal(t, snap.MarkedForReview, restoredFin.lastSnap.MarkedForReview)
}

func TestRestoreRejectsTerminalSnapshot(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	questions := makeQuestions(t, 3)
	e, err := New(questions[0].TestID, questions, 10*time.Minute, &fakeFinalizer{}, WithClock(clock.Now))
	require.NoError(t, err)
	require.NoError(t, e.Start())
	_, err = e.Submit(context.Background(), false)
	require.NoError(t, err)

	snap := e.Snapshot(clock.Now())
	_, err = Restore(snap, questions, &fakeFinalizer{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestForcedAndManualSubmitScoreIdentically(t *testing.T) {
	buildAnswered := func(fin Finalizer) *Engine {
		clock := newFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
		questions := makeQuestions(t, 4)
		e, err := New(questions[0].TestID, questions, 10*time.Minute, fin, WithClock(clock.Now))
		require.NoError(t, err)
		require.NoError(t, e.Start())
		require.NoError(t, e.SelectAnswer(questions[0].ID, opt(model.OptionB), 3))
		require.NoError(t, e.SelectAnswer(questions[1].ID, opt(model.OptionC), 3))
		return e
	}

	manual := buildAnswered(&fakeFinalizer{})
	forced := buildAnswered(&fakeFinalizer{})

	manualStats, err := manual.Submit(context.Background(), false)
	require.NoError(t, err)
	forcedStats, err := forced.Submit(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, manualStats, forcedStats)
}
