package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"reservo/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetFlow(ctx context.Context, sessionID string) (*models.FlowState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FlowState), args.Error(1)
}

func (m *mockRepo) SaveFlow(ctx context.Context, state *models.FlowState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *mockRepo) ClearFlow(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverFlowRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverFlowRepository(primary, fallback, &logger)
	now := time.Now()
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		state := &models.FlowState{SessionID: "s-1"}
		primary.On("GetFlow", ctx, "s-1").Return(state, nil).Once()

		got, err := repo.GetFlow(ctx, "s-1")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		state := &models.FlowState{SessionID: "s-2"}
		primary.On("GetFlow", ctx, "s-2").Return(nil, errors.New("fail")).Once()
		fallback.On("GetFlow", ctx, "s-2").Return(state, nil).Once()

		got, err := repo.GetFlow(ctx, "s-2")
		assert.NoError(t, err)
		assert.Equal(t, state, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("SaveFlow", ctx, mock.Anything).Return(nil).Once()
		fallback.On("CheckRateLimit", ctx, "k", 1, time.Minute).Return(true, nil).Once()

		assert.NoError(t, repo.SaveFlow(ctx, &models.FlowState{SessionID: "s-3"}))
		allowed, err := repo.CheckRateLimit(ctx, "k", 1, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertNotCalled(t, "SaveFlow", ctx, mock.Anything)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("ClearFlow", ctx, "s-4").Return(nil).Once()

		assert.NoError(t, repo.ClearFlow(ctx, "s-4"))
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("FailedRecoveryResetsTimer", func(t *testing.T) {
		primary.On("CheckRateLimit", ctx, "k", 1, time.Minute).Return(false, errors.New("down")).Once()
		fallback.On("CheckRateLimit", ctx, "k", 1, time.Minute).Return(true, nil).Twice()

		_, err := repo.CheckRateLimit(ctx, "k", 1, time.Minute)
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())

		// Next call inside the recovery interval skips the primary.
		_, err = repo.CheckRateLimit(ctx, "k", 1, time.Minute)
		assert.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
