package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sarthak03dot/Chat-App/internal/logging"
)

type MockPurger struct {
	mock.Mock
}

func (m *MockPurger) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewManager_Validates(t *testing.T) {
	_, err := NewManager("not a cron", time.Hour, new(MockPurger), logging.Discard())
	assert.Error(t, err)
	_, err = NewManager("0 3 * * *", 0, new(MockPurger), logging.Discard())
	assert.Error(t, err)
	_, err = NewManager("0 3 * * *", time.Hour, new(MockPurger), logging.Discard())
	assert.NoError(t, err)
}

func TestRunOnce_UsesPeriodCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	store := new(MockPurger)
	store.On("DeleteBefore", now.Add(-48*time.Hour)).Return(int64(7), nil).Once()

	m, err := NewManager("0 3 * * *", 48*time.Hour, store, logging.Discard())
	require.NoError(t, err)
	m.now = func() time.Time { return now }

	n, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	store.AssertExpectations(t)
}

func TestRunOnce_WrapsStoreError(t *testing.T) {
	boom := errors.New("locked")
	store := new(MockPurger)
	store.On("DeleteBefore", mock.Anything).Return(int64(0), boom)

	m, err := NewManager("0 0 * * *", time.Hour, store, logging.Discard())
	require.NoError(t, err)

	_, err = m.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRun_StopsWithContext(t *testing.T) {
	m, err := NewManager("0 3 * * *", time.Hour, new(MockPurger), logging.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
