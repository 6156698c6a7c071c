// Package kthread provides the kernel's thread-spawn facility: named threads
// of control backed by goroutines, with a non-returning exit.
package kthread

import (
	"runtime"
	"sync/atomic"
)

var nextID atomic.Uint64

// Thread is one kernel-managed thread of control.
type Thread struct {
	id   uint64
	name string
	done chan struct{}
}

// Spawn starts fn on a new thread and returns immediately. The thread runs
// until fn returns or calls Exit.
func Spawn(name string, fn func(*Thread)) *Thread {
	t := &Thread{
		id:   nextID.Add(1),
		name: name,
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		fn(t)
	}()
	return t
}

// ID returns the thread's unique id.
func (t *Thread) ID() uint64 {
	return t.id
}

// Name returns the thread's name.
func (t *Thread) Name() string {
	return t.name
}

// Exit terminates the calling thread. It does not return; deferred calls on
// the thread's stack still run.
func Exit() {
	runtime.Goexit()
}

// Join blocks until the thread has finished.
func (t *Thread) Join() {
	<-t.done
}

// Done returns a channel closed when the thread finishes.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}
