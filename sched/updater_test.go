package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/robertmeta/pricewatch/logger"
	"github.com/robertmeta/pricewatch/model"
)

type stubBatchUpdater struct {
	calls chan struct{}
}

func newStubBatchUpdater() *stubBatchUpdater {
	return &stubBatchUpdater{calls: make(chan struct{}, 16)}
}

func (s *stubBatchUpdater) UpdateAll() map[string]*model.ItemResult {
	s.calls <- struct{}{}
	return nil
}

func waitForCall(t *testing.T, calls chan struct{}) {
	t.Helper()
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch update")
	}
}

func TestUpdater_RunsOnInterval(t *testing.T) {
	stub := newStubBatchUpdater()
	u := NewUpdater(stub, logger.NewNop(), 10*time.Millisecond, nil)

	u.Start(context.Background())
	defer u.Stop()

	waitForCall(t, stub.calls)
	waitForCall(t, stub.calls)
}

func TestUpdater_ManualTrigger(t *testing.T) {
	stub := newStubBatchUpdater()
	trigger := make(chan struct{}, 1)
	u := NewUpdater(stub, logger.NewNop(), time.Hour, trigger)

	u.Start(context.Background())
	defer u.Stop()

	trigger <- struct{}{}
	waitForCall(t, stub.calls)
}

func TestUpdater_StopEndsLoop(t *testing.T) {
	stub := newStubBatchUpdater()
	u := NewUpdater(stub, logger.NewNop(), 10*time.Millisecond, nil)

	u.Start(context.Background())
	waitForCall(t, stub.calls)
	u.Stop()

	// Drain anything already in flight, then verify the loop is quiet.
	time.Sleep(30 * time.Millisecond)
	for len(stub.calls) > 0 {
		<-stub.calls
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, stub.calls)
}

func TestUpdater_ContextCancelEndsLoop(t *testing.T) {
	stub := newStubBatchUpdater()
	u := NewUpdater(stub, logger.NewNop(), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	u.Start(ctx)
	waitForCall(t, stub.calls)
	cancel()

	time.Sleep(30 * time.Millisecond)
	for len(stub.calls) > 0 {
		<-stub.calls
	}
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, stub.calls)
}
