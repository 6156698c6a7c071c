package kthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnRunsAndJoins(t *testing.T) {
	ran := false
	th := Spawn("worker", func(self *Thread) {
		ran = true
		assert.Equal(t, "worker", self.Name())
	})
	th.Join()
	assert.True(t, ran)
}

func TestSpawnAssignsUniqueIDs(t *testing.T) {
	seen := make(map[uint64]bool)
	for i := 0; i < 8; i++ {
		th := Spawn("t", func(*Thread) {})
		th.Join()
		assert.False(t, seen[th.ID()], "thread id %d reused", th.ID())
		seen[th.ID()] = true
	}
}

func TestExitRunsDeferredCalls(t *testing.T) {
	cleaned := make(chan struct{})
	th := Spawn("exiting", func(*Thread) {
		defer close(cleaned)
		Exit()
		t.Error("unreachable after Exit")
	})
	th.Join()
	select {
	case <-cleaned:
	case <-time.After(time.Second):
		t.Fatal("deferred call did not run after Exit")
	}
}

func TestDoneClosesOnFinish(t *testing.T) {
	release := make(chan struct{})
	th := Spawn("blocked", func(*Thread) { <-release })

	select {
	case <-th.Done():
		t.Fatal("done closed while the thread was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-th.Done():
	case <-time.After(time.Second):
		t.Fatal("done never closed")
	}
	require.NotPanics(t, th.Join)
}
