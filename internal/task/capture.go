package task

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fentz26/scenebridge/internal/host"
	"github.com/fentz26/scenebridge/internal/store"
)

// CaptureConfig bounds the capture task's waits.
type CaptureConfig struct {
	// DefaultWait is the target wait in play mode when the request does
	// not specify one.
	DefaultWait time.Duration
	// SafetyMargin is added to the target wait to form the hard
	// wall-clock bound on the whole task.
	SafetyMargin time.Duration
	// Staleness is the record age beyond which a resumed task is
	// considered a leftover from a crash and aborted.
	Staleness time.Duration
}

// DefaultCaptureConfig returns the stock capture timing.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		DefaultWait:  time.Second,
		SafetyMargin: 30 * time.Second,
		Staleness:    5 * time.Minute,
	}
}

type captureParams struct {
	Output  string  `json:"output"`
	WaitSec float64 `json:"wait_sec"`
	Request string  `json:"request"`
}

// Capture drives the "enter play mode, wait, capture an artifact, exit"
// sequence across scheduler ticks and host restarts.
type Capture struct {
	rec   Record
	env   host.Environment
	out   Responder
	clock Clock
	sched Scheduler
	audit store.Auditor
	cfg   CaptureConfig

	// subscribed makes re-subscription idempotent: Resume after a
	// restart and Start in the same process must not double ticks.
	subscribed bool
}

// NewCapture creates the capture task bound to its collaborators.
func NewCapture(kv store.KV, env host.Environment, out Responder, clock Clock, sched Scheduler, cfg CaptureConfig) *Capture {
	return &Capture{
		rec:   NewRecord("capture", kv),
		env:   env,
		out:   out,
		clock: clock,
		sched: sched,
		cfg:   cfg,
	}
}

// SetAuditor wires the optional terminal-outcome audit trail.
func (c *Capture) SetAuditor(a store.Auditor) { c.audit = a }

// Pending reports whether a capture is outstanding.
func (c *Capture) Pending() bool {
	p, err := c.rec.Pending()
	if err != nil {
		log.Printf("capture: pending check failed: %v", err)
		return false
	}
	return p
}

// Start begins a capture. The full record is persisted before play mode is
// entered, so a restart triggered by the mode switch finds everything it
// needs to finish or abort. A capture already in flight is a conflict.
func (c *Capture) Start(output string, waitSec float64, request string) error {
	if c.Pending() {
		return ErrTaskPending
	}
	if waitSec <= 0 {
		waitSec = c.cfg.DefaultWait.Seconds()
	}

	blob, err := json.Marshal(captureParams{Output: output, WaitSec: waitSec, Request: request})
	if err != nil {
		return fmt.Errorf("encode capture params: %w", err)
	}
	if err := c.rec.Begin(c.clock.Now(), string(blob)); err != nil {
		return fmt.Errorf("persist capture record: %w", err)
	}
	c.subscribe()

	// Side effect last: from here on only the durable record matters.
	if err := c.env.EnterPlayMode(); err != nil {
		c.finish("failure", fmt.Sprintf("capture failed: %v", err), request)
		return nil
	}
	log.Printf("capture: started, output=%s wait=%.1fs", output, waitSec)
	return nil
}

// Resume is called on every process start-up. A pending record either
// re-subscribes the tick callback or, when stale and the environment is
// not in play mode, is aborted and cleared.
func (c *Capture) Resume() {
	if !c.Pending() {
		return
	}
	start, err := c.rec.StartTime()
	if err != nil {
		log.Printf("capture: resume read failed: %v", err)
		return
	}
	p := c.params()

	if c.clock.Now().Sub(start) > c.cfg.Staleness && !c.env.InPlayMode() {
		log.Printf("capture: clearing stale record from %v", start)
		c.finish("aborted", "capture aborted: stale record from a previous session", p.Request)
		return
	}
	log.Printf("capture: resuming, started %v", start)
	c.subscribe()
}

// subscribe registers the tick callback exactly once per process.
func (c *Capture) subscribe() {
	if c.subscribed {
		return
	}
	c.subscribed = true
	c.sched.Register("capture", c.Tick)
}

func (c *Capture) params() captureParams {
	var p captureParams
	blob, err := c.rec.Params()
	if err == nil && blob != "" {
		if err := json.Unmarshal([]byte(blob), &p); err != nil {
			log.Printf("capture: bad params blob: %v", err)
		}
	}
	return p
}

// Tick advances the state machine by one scheduler tick. Ticks while the
// environment is not ready, or before the target wait elapses, are no-ops.
func (c *Capture) Tick() {
	if !c.Pending() {
		return
	}
	start, err := c.rec.StartTime()
	if err != nil {
		log.Printf("capture: tick read failed: %v", err)
		return
	}
	p := c.params()
	wait := time.Duration(p.WaitSec * float64(time.Second))
	elapsed := c.clock.Now().Sub(start)

	// The safety timeout is checked first: it bounds the task even if the
	// ready condition never holds.
	if elapsed >= wait+c.cfg.SafetyMargin {
		c.finish("timeout", fmt.Sprintf("capture timed out after %.1fs (wait %.1fs + margin %.1fs)",
			elapsed.Seconds(), wait.Seconds(), c.cfg.SafetyMargin.Seconds()), p.Request)
		return
	}

	if !c.env.PlayModeReady() {
		return
	}
	if elapsed < wait {
		return
	}

	performed, err := c.rec.Performed()
	if err != nil {
		log.Printf("capture: performed check failed: %v", err)
		return
	}
	if !performed {
		// Guard persisted before acting so racing ticks or a restart
		// right after the capture never repeat it.
		if err := c.rec.SetPerformed(); err != nil {
			log.Printf("capture: persist performed flag failed: %v", err)
			return
		}
		if err := c.env.CaptureScreenshot(p.Output); err != nil {
			c.finish("failure", fmt.Sprintf("capture failed: %v", err), p.Request)
			return
		}
		// Finalizing: give the artifact a tick to become observable.
		return
	}

	if _, err := os.Stat(p.Output); err != nil {
		// Not flushed yet; the safety timeout bounds this wait too.
		return
	}
	c.finish("success", fmt.Sprintf("captured %s after %.1fs", p.Output, elapsed.Seconds()), p.Request)
}

// finish runs the terminal sequence: respond, revert, clear - in that
// order, so a crash mid-sequence leaves the environment restored and at
// worst a stale record for the next start-up.
func (c *Capture) finish(result, payload, request string) {
	start, _ := c.rec.StartTime()

	if err := c.out.Write(request, payload); err != nil {
		log.Printf("capture: write response failed: %v", err)
	}
	if err := c.env.ExitPlayMode(); err != nil {
		log.Printf("capture: exit play mode failed: %v", err)
	}
	if err := c.rec.Clear(); err != nil {
		log.Printf("capture: clear record failed: %v", err)
	}
	if c.audit != nil {
		if err := c.audit.RecordOutcome("capture", result, payload, start, c.clock.Now()); err != nil {
			log.Printf("capture: audit failed: %v", err)
		}
	}
	log.Printf("capture: %s", payload)
}
