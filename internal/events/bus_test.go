package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/cpmm-sniper/internal/domain"
)

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8, time.Second)
	defer bus.Close()

	got := make(chan AttemptFinishedEvent, 1)
	bus.SubscribeFunc(AttemptFinished, func(_ context.Context, e Event) error {
		got <- e.(AttemptFinishedEvent)
		return nil
	})

	attempt := domain.NewBuyAttempt(domain.EligibleToken{})
	attempt.Finish(nil)
	require.NoError(t, bus.Publish(NewAttemptFinished(attempt)))

	select {
	case e := <-got:
		assert.Equal(t, attempt.ID, e.Attempt.ID)
		assert.Equal(t, domain.StatusSucceeded, e.Attempt.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_HandlerErrorDoesNotReachPublisher(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8, time.Second)
	defer bus.Close()

	var calls atomic.Int32
	bus.SubscribeFunc(PoolDetected, func(context.Context, Event) error {
		calls.Add(1)
		return errors.New("sink down")
	})

	require.NoError(t, bus.Publish(NewPoolDetected(domain.EligibleToken{})))
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8, time.Second)

	var calls atomic.Int32
	sub := bus.SubscribeFunc(PoolDetected, func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})
	sub.Unsubscribe()

	require.NoError(t, bus.Publish(NewPoolDetected(domain.EligibleToken{})))
	require.NoError(t, bus.Close())
	assert.Zero(t, calls.Load())
}

func TestBus_PublishAfterShutdown(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1, time.Second)
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(NewPoolDetected(domain.EligibleToken{})), ErrBusClosed)
}

func TestAttemptFinished_CopiesTxIDs(t *testing.T) {
	attempt := domain.NewBuyAttempt(domain.EligibleToken{})
	attempt.TxIDs = append(attempt.TxIDs, [64]byte{1})

	e := NewAttemptFinished(attempt)
	attempt.TxIDs[0] = [64]byte{2}

	assert.Equal(t, byte(1), e.Attempt.TxIDs[0][0])
}
