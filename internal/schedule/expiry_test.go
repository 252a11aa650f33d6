package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) SweepEnded(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestExpiryJob(t *testing.T) {
	t.Run("Runs a sweep with a deadline", func(t *testing.T) {
		sweeper := &mockSweeper{}
		sweeper.On("SweepEnded", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		})).Return(2, nil).Once()

		NewExpiryJob(sweeper, time.Second).Run()
		sweeper.AssertExpectations(t)
	})

	t.Run("Failures are absorbed", func(t *testing.T) {
		sweeper := &mockSweeper{}
		sweeper.On("SweepEnded", mock.Anything).Return(0, errors.New("db down")).Once()

		assert.NotPanics(t, NewExpiryJob(sweeper, time.Second).Run)
		sweeper.AssertExpectations(t)
	})
}

func TestNewScheduler(t *testing.T) {
	t.Run("Rejects a malformed spec", func(t *testing.T) {
		_, err := NewScheduler("every now and then", NewExpiryJob(&mockSweeper{}, time.Second))
		assert.Error(t, err)
	})

	t.Run("Ticks run the job", func(t *testing.T) {
		var runs atomic.Int32
		sweeper := &mockSweeper{}
		sweeper.On("SweepEnded", mock.Anything).Run(func(mock.Arguments) { runs.Add(1) }).Return(0, nil)

		c, err := NewScheduler("* * * * * *", NewExpiryJob(sweeper, time.Second))
		require.NoError(t, err)
		c.Start()
		defer c.Stop()

		assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	})
}
