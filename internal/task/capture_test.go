package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/scenebridge/internal/store"
)

// fakeClock is a deterministic time source.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeSched records registrations and runs callbacks in order.
type fakeSched struct {
	names []string
	fns   []func()
}

func (s *fakeSched) Register(name string, fn func()) {
	s.names = append(s.names, name)
	s.fns = append(s.fns, fn)
}

func (s *fakeSched) tick() {
	for _, fn := range s.fns {
		fn()
	}
}

func (s *fakeSched) registrations(name string) int {
	n := 0
	for _, r := range s.names {
		if r == name {
			n++
		}
	}
	return n
}

// fakeResponder records responses.
type fakeResponder struct {
	requests []string
	payloads []string
}

func (r *fakeResponder) Write(request, payload string) error {
	r.requests = append(r.requests, request)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *fakeResponder) last() string {
	if len(r.payloads) == 0 {
		return ""
	}
	return r.payloads[len(r.payloads)-1]
}

// fakeEnv is a controllable host environment.
type fakeEnv struct {
	inPlay       bool
	ready        bool
	enterErr     error
	captureErr   error
	captureNoop  bool // pretend the artifact is not flushed yet
	captureCalls int
	exits        int
	rebuildErr   string
	rebuilds     int
}

func (e *fakeEnv) EnterPlayMode() error {
	if e.enterErr != nil {
		return e.enterErr
	}
	e.inPlay = true
	return nil
}

func (e *fakeEnv) ExitPlayMode() error {
	e.inPlay = false
	e.ready = false
	e.exits++
	return nil
}

func (e *fakeEnv) PlayModeReady() bool { return e.inPlay && e.ready }

func (e *fakeEnv) InPlayMode() bool { return e.inPlay }

func (e *fakeEnv) CaptureScreenshot(path string) error {
	e.captureCalls++
	if e.captureErr != nil {
		return e.captureErr
	}
	if e.captureNoop {
		return nil
	}
	return os.WriteFile(path, []byte("shot"), 0644)
}

func (e *fakeEnv) RequestRebuild() error {
	e.rebuilds++
	return nil
}

func (e *fakeEnv) RebuildError() string { return e.rebuildErr }

type captureFixture struct {
	kv    *store.Memory
	env   *fakeEnv
	out   *fakeResponder
	clock *fakeClock
	sched *fakeSched
	cap   *Capture
}

func newCaptureFixture(t *testing.T, cfg CaptureConfig) *captureFixture {
	t.Helper()
	f := &captureFixture{
		kv:    store.NewMemory(),
		env:   &fakeEnv{},
		out:   &fakeResponder{},
		clock: newFakeClock(),
		sched: &fakeSched{},
	}
	f.cap = NewCapture(f.kv, f.env, f.out, f.clock, f.sched, cfg)
	f.cap.SetAuditor(f.kv)
	return f
}

// restart simulates a domain reload: fresh in-memory state over the same
// durable store.
func (f *captureFixture) restart(cfg CaptureConfig) {
	f.sched = &fakeSched{}
	f.cap = NewCapture(f.kv, f.env, f.out, f.clock, f.sched, cfg)
	f.cap.SetAuditor(f.kv)
}

func testCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DefaultWait:  time.Second,
		SafetyMargin: 30 * time.Second,
		Staleness:    5 * time.Minute,
	}
}

func TestCaptureHappyPath(t *testing.T) {
	f := newCaptureFixture(t, testCaptureConfig())
	output := filepath.Join(t.TempDir(), "shot.png")

	if err := f.cap.Start(output, 1.0, "req-1 capture"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !f.env.inPlay {
		t.Fatal("Start should enter play mode")
	}
	if !f.cap.Pending() {
		t.Fatal("Record should be pending after Start")
	}

	// Environment not ready yet: ticks are no-ops.
	f.clock.advance(500 * time.Millisecond)
	f.sched.tick()
	if len(f.out.payloads) != 0 || f.env.captureCalls != 0 {
		t.Fatal("Tick before ready should be a no-op")
	}

	// Ready but target wait not elapsed.
	f.env.ready = true
	f.sched.tick()
	if f.env.captureCalls != 0 {
		t.Fatal("Tick before wait elapsed should be a no-op")
	}

	// Wait elapsed: the capture happens, then finalizes on the next tick.
	f.clock.advance(600 * time.Millisecond)
	f.sched.tick()
	if f.env.captureCalls != 1 {
		t.Fatalf("Expected 1 capture call, got %d", f.env.captureCalls)
	}
	if len(f.out.payloads) != 0 {
		t.Fatal("Response should wait for the finalizing tick")
	}

	f.sched.tick()
	if len(f.out.payloads) != 1 {
		t.Fatalf("Expected terminal response, got %v", f.out.payloads)
	}
	if !strings.Contains(f.out.last(), "captured "+output) {
		t.Errorf("Response = %q", f.out.last())
	}
	if f.out.requests[0] != "req-1 capture" {
		t.Errorf("Response echoes request = %q", f.out.requests[0])
	}
	if f.env.inPlay {
		t.Error("Terminal state should exit play mode")
	}
	if f.cap.Pending() {
		t.Error("Record should be cleared")
	}

	outcomes := f.kv.Outcomes()
	if len(outcomes) != 1 || outcomes[0].Result != "success" {
		t.Errorf("Audit outcomes = %+v", outcomes)
	}

	// Further ticks are no-ops.
	f.sched.tick()
	if len(f.out.payloads) != 1 || f.env.captureCalls != 1 {
		t.Error("Ticks after terminal state should be no-ops")
	}
}

func TestCaptureSafetyTimeout(t *testing.T) {
	f := newCaptureFixture(t, testCaptureConfig())
	output := filepath.Join(t.TempDir(), "shot.png")

	// The ready condition never holds.
	if err := f.cap.Start(output, 1.0, "req-2 capture"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Tick once per simulated second until a terminal response appears.
	seconds := 0
	for len(f.out.payloads) == 0 && seconds < 100 {
		f.clock.advance(time.Second)
		seconds++
		f.sched.tick()
	}

	// Wait 1.0 + margin 30.0: terminal at >= 31 and < 32 elapsed units.
	if seconds != 31 {
		t.Errorf("TimedOut at %d elapsed units, want 31", seconds)
	}
	if !strings.Contains(f.out.last(), "timed out") {
		t.Errorf("Response = %q", f.out.last())
	}
	if f.env.captureCalls != 0 {
		t.Error("Timed-out task must not capture")
	}
	if f.env.exits == 0 {
		t.Error("Timeout must force play mode exit")
	}
	if f.cap.Pending() {
		t.Error("Record must be absent after timeout")
	}
}

func TestCaptureConflict(t *testing.T) {
	f := newCaptureFixture(t, testCaptureConfig())
	output := filepath.Join(t.TempDir(), "shot.png")

	if err := f.cap.Start(output, 1.0, "req-a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := f.cap.Start(output, 1.0, "req-b"); err != ErrTaskPending {
		t.Errorf("Second Start = %v, want ErrTaskPending", err)
	}
}

func TestCaptureResumeAfterRestart(t *testing.T) {
	cfg := testCaptureConfig()
	f := newCaptureFixture(t, cfg)
	output := filepath.Join(t.TempDir(), "shot.png")

	if err := f.cap.Start(output, 2.0, "req-3 capture"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Entering play mode restarts the host before the first tick.
	f.clock.advance(500 * time.Millisecond)
	f.restart(cfg)

	f.cap.Resume()
	// Resuming twice must not double the ticks.
	f.cap.Resume()
	if n := f.sched.registrations("capture"); n != 1 {
		t.Fatalf("Expected exactly 1 subscription, got %d", n)
	}

	// The resumed task keeps the original start timestamp: 1.5s more
	// reaches the 2s target.
	f.env.inPlay = true
	f.env.ready = true
	f.clock.advance(1500 * time.Millisecond)
	f.sched.tick() // capture
	f.sched.tick() // finalize
	if len(f.out.payloads) != 1 {
		t.Fatalf("Expected response after resume, got %v", f.out.payloads)
	}
	if !strings.Contains(f.out.last(), "after 2.0s") {
		t.Errorf("Duration should come from the original start time, got %q", f.out.last())
	}
	if f.cap.Pending() {
		t.Error("Record should be cleared")
	}
}

func TestCaptureStaleCleanup(t *testing.T) {
	cfg := testCaptureConfig()
	f := newCaptureFixture(t, cfg)
	output := filepath.Join(t.TempDir(), "shot.png")

	if err := f.cap.Start(output, 1.0, "req-4 capture"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Crash: the host went down before play mode ever engaged.
	f.env.inPlay = false
	f.clock.advance(cfg.Staleness + time.Minute)
	f.restart(cfg)

	f.cap.Resume()
	if f.cap.Pending() {
		t.Error("Stale record should be cleared on resume")
	}
	if f.env.captureCalls != 0 {
		t.Error("Stale cleanup must not perform the capture")
	}
	if !strings.Contains(f.out.last(), "stale") {
		t.Errorf("Response = %q", f.out.last())
	}
	if n := f.sched.registrations("capture"); n != 0 {
		t.Errorf("Stale cleanup should not subscribe, got %d registrations", n)
	}
}

func TestCaptureNotStaleWhileInPlayMode(t *testing.T) {
	// An old record with the environment still in play mode is a long
	// wait, not a crash leftover.
	cfg := testCaptureConfig()
	f := newCaptureFixture(t, cfg)
	output := filepath.Join(t.TempDir(), "shot.png")

	if err := f.cap.Start(output, 1.0, "req-5"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.clock.advance(cfg.Staleness + time.Minute)
	f.restart(cfg)
	f.env.inPlay = true

	f.cap.Resume()
	if n := f.sched.registrations("capture"); n != 1 {
		t.Errorf("In-play resume should subscribe, got %d registrations", n)
	}
}

func TestCapturePerformsExactlyOnce(t *testing.T) {
	f := newCaptureFixture(t, testCaptureConfig())
	f.env.captureNoop = true // artifact never observable
	output := filepath.Join(t.TempDir(), "shot.png")

	if err := f.cap.Start(output, 1.0, "req-6"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	f.env.ready = true
	f.clock.advance(time.Second)

	// Many ticks in the finalizing state must not repeat the capture.
	for i := 0; i < 5; i++ {
		f.sched.tick()
	}
	if f.env.captureCalls != 1 {
		t.Errorf("Capture ran %d times, want exactly once", f.env.captureCalls)
	}

	// The safety timeout eventually bounds the unobservable artifact.
	f.clock.advance(time.Minute)
	f.sched.tick()
	if !strings.Contains(f.out.last(), "timed out") {
		t.Errorf("Response = %q", f.out.last())
	}
}

func TestCaptureEnterPlayModeFailure(t *testing.T) {
	f := newCaptureFixture(t, testCaptureConfig())
	f.env.enterErr = fmt.Errorf("editor is compiling")
	output := filepath.Join(t.TempDir(), "shot.png")

	if err := f.cap.Start(output, 1.0, "req-7"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if f.cap.Pending() {
		t.Error("Failed entry should clear the record")
	}
	if !strings.Contains(f.out.last(), "editor is compiling") {
		t.Errorf("Response = %q", f.out.last())
	}
}
