package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopPriorityOrder(t *testing.T) {
	var order []int
	record := func(v int) Controller {
		return ControlFunc(func(cc ControlContext) error {
			require.Equal(t, v, cc.PriorityLevel())
			order = append(order, v)
			return nil
		})
	}
	loop := NewLoop().
		AddController(PrLvLow, record(PrLvLow)).
		AddController(PrLvSense, record(PrLvSense)).
		AddController(PrLvTop, record(PrLvTop))
	loop.RunIteration(context.TODO())
	require.Equal(t, []int{PrLvTop, PrLvSense, PrLvLow}, order)
}

func TestLoopRun(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour
	countCh := make(chan int, 8)
	count := 0
	loop.AddController(PrLvControl, ControlFunc(func(cc ControlContext) error {
		count++
		countCh <- count
		if count < 3 {
			cc.TriggerNext()
		}
		return nil
	}))
	ctx, cancel := context.WithCancel(context.TODO())
	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(ctx)
	}()
	loop.TriggerNext()
	for i := 1; i <= 3; i++ {
		select {
		case n := <-countCh:
			require.Equal(t, i, n)
		case <-time.After(time.Second):
			t.Fatalf("iteration %d not triggered", i)
		}
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

func TestLoopRunnerFailure(t *testing.T) {
	errFail := errors.New("fail")
	loop := NewLoop().AddRunnable(RunFunc(func(ctx context.Context) error {
		require.NotNil(t, LoopCtlFrom(ctx))
		return errFail
	}))
	select {
	case err := <-runAsync(loop):
		require.True(t, errors.Is(err, errFail))
	case <-time.After(time.Second):
		t.Fatal("loop not stopped")
	}
}

func runAsync(r Runnable) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run(context.TODO())
	}()
	return errCh
}
