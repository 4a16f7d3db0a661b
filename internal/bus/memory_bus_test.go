// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"testing"

	"github.com/ManuGH/gazegate/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func TestMemoryBus_DeliversInOrder(t *testing.T) {
	b := NewMemoryBus(8)
	sub, err := b.Subscribe(context.Background(), TopicNotifications)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	first := New(LevelError, "Camera Error", "Camera access denied", ActionRetryCamera)
	second := New(LevelWarning, "Gaze Analysis Issue", "Could not determine gaze")
	require.NoError(t, b.Publish(context.Background(), TopicNotifications, first))
	require.NoError(t, b.Publish(context.Background(), TopicNotifications, second))
	require.NoError(t, b.Publish(context.Background(), "other", second))

	got := Drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, []Action{ActionRetryCamera}, got[0].Actions)
	assert.Equal(t, second.ID, got[1].ID)
	assert.Empty(t, Drain(sub))
}

func TestMemoryBus_DropMetrics(t *testing.T) {
	b := NewMemoryBus(4)
	sub, err := b.Subscribe(context.Background(), "drop-topic")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })

	initial := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("drop-topic", "full"))
	for i := 0; i < 10; i++ {
		_ = b.Publish(context.Background(), "drop-topic", New(LevelInfo, "t", "m"))
	}
	final := getCounterValue(t, metrics.BusDroppedTotal.WithLabelValues("drop-topic", "full"))
	assert.InDelta(t, 6, final-initial, 1e-9)
	assert.Len(t, Drain(sub), 4)
}

func TestMemoryBus_ContextCancelUnsubscribes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := NewMemoryBus(0)
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, TopicNotifications)
	require.NoError(t, err)
	cancel()

	for range sub.C() {
	}
	require.NoError(t, sub.Close())
	require.NoError(t, b.Publish(context.Background(), TopicNotifications, New(LevelInfo, "t", "m")))
}

func TestMemoryBus_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := NewMemoryBus(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := b.Subscribe(ctx, TopicNotifications)
	require.NoError(t, err)

	b.Close()
	b.Close()
	_, open := <-sub.C()
	assert.False(t, open)
	assert.ErrorIs(t, b.Publish(context.Background(), TopicNotifications, Notification{}), ErrClosed)
	_, err = b.Subscribe(context.Background(), TopicNotifications)
	assert.ErrorIs(t, err, ErrClosed)
}
