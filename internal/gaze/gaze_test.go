// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gaze

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/gazegate/internal/frame"
	"github.com/ManuGH/gazegate/internal/inference"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func source() frame.Source {
	l := &frame.Latest{}
	l.Store(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	return l
}

func analyzer(fn func(context.Context, frame.Still) (inference.Analysis, error)) inference.Capability {
	return inference.Funcs{AnalyzeFunc: fn}
}

func TestPoll_UpdatesSample(t *testing.T) {
	looking := true
	m := New(analyzer(func(context.Context, frame.Still) (inference.Analysis, error) {
		return inference.Analysis{IsLookingAtScreen: looking}, nil
	}), zerolog.New(io.Discard))

	s, ok := m.Poll(context.Background(), source(), TriggerManual)
	require.True(t, ok)
	assert.Equal(t, AtScreen, s.Looking)

	looking = false
	s, ok = m.Poll(context.Background(), source(), TriggerManual)
	require.True(t, ok)
	assert.Equal(t, Away, s.Looking)
	assert.False(t, m.Sample().InFlight)
}

func TestPoll_NoFrameSkipsCall(t *testing.T) {
	m := New(analyzer(func(context.Context, frame.Still) (inference.Analysis, error) {
		t.Fatal("analyze must not run without a frame")
		return inference.Analysis{}, nil
	}), zerolog.New(io.Discard))

	_, ok := m.Poll(context.Background(), &frame.Latest{}, TriggerTimer)
	assert.False(t, ok)
	assert.Equal(t, Unknown, m.Sample().Looking)
}

func TestPoll_AtMostOneInFlight(t *testing.T) {
	release := make(chan struct{})
	var outstanding, maxOutstanding, calls atomic.Int32
	m := New(analyzer(func(context.Context, frame.Still) (inference.Analysis, error) {
		n := outstanding.Add(1)
		for {
			cur := maxOutstanding.Load()
			if n <= cur || maxOutstanding.CompareAndSwap(cur, n) {
				break
			}
		}
		calls.Add(1)
		<-release
		outstanding.Add(-1)
		return inference.Analysis{IsLookingAtScreen: true}, nil
	}), zerolog.New(io.Discard))

	src := source()
	first := make(chan bool, 1)
	go func() {
		_, ok := m.Poll(context.Background(), src, TriggerTimer)
		first <- ok
	}()
	require.Eventually(t, m.InFlight, time.Second, time.Millisecond)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := m.Poll(context.Background(), src, TriggerMotion)
			assert.False(t, ok, "concurrent polls are dropped")
		}()
	}
	wg.Wait()
	close(release)

	assert.True(t, <-first)
	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 1, maxOutstanding.Load())
}

func TestPoll_FailureNotifiesOnlyOnKnownToUnknown(t *testing.T) {
	var fail atomic.Bool
	var notified atomic.Int32
	m := New(analyzer(func(context.Context, frame.Still) (inference.Analysis, error) {
		if fail.Load() {
			return inference.Analysis{}, errors.New("model offline")
		}
		return inference.Analysis{IsLookingAtScreen: true}, nil
	}), zerolog.New(io.Discard), WithOnFailure(func(error) { notified.Add(1) }))

	src := source()
	fail.Store(true)
	m.Poll(context.Background(), src, TriggerTimer)
	assert.EqualValues(t, 0, notified.Load(), "unknown to unknown is silent")

	fail.Store(false)
	m.Poll(context.Background(), src, TriggerTimer)
	require.Equal(t, AtScreen, m.Sample().Looking)

	fail.Store(true)
	for range 3 {
		m.Poll(context.Background(), src, TriggerTimer)
	}
	assert.EqualValues(t, 1, notified.Load())
	assert.Equal(t, Unknown, m.Sample().Looking)
}

func TestPoll_ResetDiscardsOutstandingResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var changes atomic.Int32
	m := New(analyzer(func(context.Context, frame.Still) (inference.Analysis, error) {
		close(started)
		<-release
		return inference.Analysis{IsLookingAtScreen: true}, nil
	}), zerolog.New(io.Discard), WithOnChange(func(Sample) { changes.Add(1) }))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := m.Poll(context.Background(), source(), TriggerTimer)
		assert.False(t, ok)
	}()
	<-started
	m.Reset()
	close(release)
	<-done

	assert.Equal(t, Unknown, m.Sample().Looking)
	assert.Zero(t, changes.Load())
}

func TestRun_StopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32
	m := New(analyzer(func(context.Context, frame.Still) (inference.Analysis, error) {
		calls.Add(1)
		return inference.Analysis{IsLookingAtScreen: true}, nil
	}), zerolog.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx, context.Background(), source(), 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no poll after the loop stopped")
}

func TestLooking_JSON(t *testing.T) {
	out, err := json.Marshal(map[string]Looking{"a": Unknown, "b": Away, "c": AtScreen})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":false,"c":true}`, string(out))
}
