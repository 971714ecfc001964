// Package bridge runs the scenebridge request loop: a single-threaded
// cooperative scheduler, the request-file poller, and the built-in command
// handlers.
package bridge

import (
	"context"
	"log"
	"sync"
	"time"
)

type callback struct {
	name string
	fn   func()
}

// Loop is the cooperative scheduler. Exactly one goroutine invokes the
// registered callbacks once per interval, in registration order. Callbacks
// must never block: anything that would wait is modeled as "return now,
// re-check on a later tick".
type Loop struct {
	interval time.Duration

	mu        sync.Mutex
	callbacks []callback

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoop creates a loop ticking at the given interval.
func NewLoop(interval time.Duration) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a named tick callback. Registration order is invocation
// order. Safe to call while the loop runs; the new callback joins on the
// next tick.
func (l *Loop) Register(name string, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, callback{name: name, fn: fn})
}

// Start begins ticking.
func (l *Loop) Start() {
	l.wg.Add(1)
	go l.run()
	log.Printf("Bridge loop started (tick %v)", l.interval)
}

// Stop stops the loop and waits for the in-flight tick to finish.
func (l *Loop) Stop() {
	l.cancel()
	l.wg.Wait()
	log.Println("Bridge loop stopped")
}

func (l *Loop) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.RunTick()
		}
	}
}

// RunTick invokes every registered callback once, in order. Exported so
// tests can drive the loop deterministically.
func (l *Loop) RunTick() {
	l.mu.Lock()
	cbs := make([]callback, len(l.callbacks))
	copy(cbs, l.callbacks)
	l.mu.Unlock()

	for _, cb := range cbs {
		cb.fn()
	}
}
