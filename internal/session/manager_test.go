package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizplan-workers/internal/common/errors"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/models"
	"bizplan-workers/internal/testutil"
)

func newTestManager(t *testing.T, ai *testutil.FakeAI) (*Manager, *MemoryStore) {
	store := NewMemoryStore(time.Hour)
	return NewManager(store, ai, logger.NewTestLogger(t)), store
}

func startInput() StartInput {
	return StartInput{
		BusinessIdea: "coffee subscription box",
		ProjectID:    "proj-1",
		ProjectName:  "Bean Box",
	}
}

func TestManager_Start(t *testing.T) {
	m, store := newTestManager(t, testutil.NewFakeAI())

	token, q, err := m.Start(context.Background(), startInput())
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "Question 1", q.Text)

	st, err := store.Load(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingAnswer, st.Phase)
	assert.Equal(t, []string{"coffee", "subscription"}, st.Keywords)
}

func TestManager_StartAlwaysCreatesNewSession(t *testing.T) {
	m, _ := newTestManager(t, testutil.NewFakeAI())

	first, _, err := m.Start(context.Background(), startInput())
	require.NoError(t, err)
	second, _, err := m.Start(context.Background(), startInput())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestManager_StartValidation(t *testing.T) {
	m, _ := newTestManager(t, testutil.NewFakeAI())

	_, _, err := m.Start(context.Background(), StartInput{BusinessIdea: "  "})
	assert.True(t, errors.Is(err, errors.ErrInvalidAnswer))
}

func TestManager_StartUpstreamFailureStoresNothing(t *testing.T) {
	ai := testutil.NewFakeAI()
	ai.FirstErr = fmt.Errorf("down")
	m, store := newTestManager(t, ai)
	m.newToken = func() string { return "fixed" }

	_, _, err := m.Start(context.Background(), startInput())
	assert.True(t, errors.Is(err, errors.ErrUpstreamGeneration))

	_, err = store.Load(context.Background(), "fixed")
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

func TestManager_SubmitAnswerUnknownToken(t *testing.T) {
	m, _ := newTestManager(t, testutil.NewFakeAI())

	_, err := m.SubmitAnswer(context.Background(), "missing", "answer", 50)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

func TestManager_ConcurrentSubmitsAreSerialized(t *testing.T) {
	ai := testutil.NewFakeAI()
	m, _ := newTestManager(t, ai)
	token, _, err := m.Start(context.Background(), startInput())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, MaxTurns)
	for i := 0; i < MaxTurns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.SubmitAnswer(context.Background(), token, fmt.Sprintf("answer %d", i), 50)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	st, err := m.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, MaxTurns, st.TurnCount)
	assert.Len(t, st.Turns, MaxTurns)
	assert.Equal(t, PhaseReadyToGenerate, st.Phase)
}

func TestManager_Handoff(t *testing.T) {
	ai := testutil.NewFakeAI()
	m, store := newTestManager(t, ai)
	token, _, err := m.Start(context.Background(), startInput())
	require.NoError(t, err)

	_, err = m.Handoff(context.Background(), token, func(models.GenerationRequest) (string, error) {
		t.Fatal("handoff must not run before the session is ready")
		return "", nil
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidSessionState))

	for i := 0; i < MaxTurns; i++ {
		_, err := m.SubmitAnswer(context.Background(), token, "answer", 50)
		require.NoError(t, err)
	}

	_, err = m.Handoff(context.Background(), token, func(models.GenerationRequest) (string, error) {
		return "", fmt.Errorf("db down")
	})
	assert.Error(t, err)
	_, err = store.Load(context.Background(), token)
	assert.NoError(t, err, "session survives a failed handoff")

	var got models.GenerationRequest
	id, err := m.Handoff(context.Background(), token, func(req models.GenerationRequest) (string, error) {
		got = req
		return "plan-1", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "plan-1", id)
	assert.Len(t, got.Answers, MaxTurns)
	assert.Equal(t, "proj-1", got.ProjectID)

	_, err = store.Load(context.Background(), token)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

func TestManager_Reset(t *testing.T) {
	m, _ := newTestManager(t, testutil.NewFakeAI())
	token, _, err := m.Start(context.Background(), startInput())
	require.NoError(t, err)

	require.NoError(t, m.Reset(context.Background(), token))

	_, err = m.Get(context.Background(), token)
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	assert.Len(t, k.locks, 1)
	unlock()
	assert.Empty(t, k.locks)
}
