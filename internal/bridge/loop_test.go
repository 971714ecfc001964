package bridge

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRegistrationOrder(t *testing.T) {
	l := NewLoop(time.Hour)

	var order []string
	l.Register("a", func() { order = append(order, "a") })
	l.Register("b", func() { order = append(order, "b") })
	l.Register("c", func() { order = append(order, "c") })

	l.RunTick()
	l.RunTick()

	want := []string{"a", "b", "c", "a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("Invocations = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Invocations = %v, want %v", order, want)
		}
	}
}

func TestLoopRegisterDuringRun(t *testing.T) {
	l := NewLoop(time.Hour)

	var lateRan bool
	l.Register("first", func() {
		l.Register("late", func() { lateRan = true })
	})

	// The callback added mid-tick joins on the next tick, not this one.
	l.RunTick()
	if lateRan {
		t.Error("Late callback ran on the tick that registered it")
	}
	l.RunTick()
	if !lateRan {
		t.Error("Late callback never ran")
	}
}

func TestLoopStartStop(t *testing.T) {
	l := NewLoop(time.Millisecond)

	var ticks atomic.Int64
	l.Register("count", func() { ticks.Add(1) })

	l.Start()
	time.Sleep(50 * time.Millisecond)
	l.Stop()

	n := ticks.Load()
	if n == 0 {
		t.Fatal("Loop never ticked")
	}
	time.Sleep(20 * time.Millisecond)
	if ticks.Load() != n {
		t.Error("Loop kept ticking after Stop")
	}
}
