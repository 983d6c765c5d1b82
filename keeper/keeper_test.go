package keeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/DrDelphi/NoLossLottery/data"
	"github.com/DrDelphi/NoLossLottery/engine"
)

type fakeTarget struct {
	mu        sync.Mutex
	ready     map[data.PathID]bool
	results   map[data.PathID]error
	checkErr  error
	triggered []data.PathID
}

func (f *fakeTarget) CheckTransitionReady(_ context.Context, path data.PathID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.ready[path], f.checkErr
}

func (f *fakeTarget) TriggerTransition(_ context.Context, path data.PathID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.triggered = append(f.triggered, path)

	return f.results[path]
}

func (f *fakeTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.triggered)
}

func TestTickTriggersReadyPaths(t *testing.T) {
	target := &fakeTarget{
		ready: map[data.PathID]bool{data.PathLock: true, data.PathReopen: true, data.PathPayout: true},
		results: map[data.PathID]error{
			data.PathReopen: &engine.UpkeepNotReadyError{Path: data.PathReopen, Reason: "raced"},
			data.PathPayout: errors.New("venue down"),
		},
	}
	k := New(target, time.Second)

	performed := k.Tick(context.Background())
	assert.Equal(t, []data.PathID{data.PathLock}, performed)
	assert.ElementsMatch(t, []data.PathID{data.PathLock, data.PathPayout, data.PathReopen}, target.triggered)
}

func TestTickSkipsOnCheckError(t *testing.T) {
	target := &fakeTarget{
		ready:    map[data.PathID]bool{data.PathLock: true},
		checkErr: engine.ErrEngineStopped,
	}
	k := New(target, time.Second)

	assert.Empty(t, k.Tick(context.Background()))
	assert.Empty(t, target.triggered)
}

func TestRunStopsWithContext(t *testing.T) {
	target := &fakeTarget{ready: map[data.PathID]bool{data.PathLock: true}}
	k := New(target, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- k.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return target.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
