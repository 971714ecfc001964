package task

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/fentz26/scenebridge/internal/host"
	"github.com/fentz26/scenebridge/internal/store"
)

// RebuildConfig bounds the rebuild tracker.
type RebuildConfig struct {
	// Timeout is the hard wall-clock bound on a rebuild that neither
	// reports an error nor restarts the host.
	Timeout time.Duration
	// Staleness is the record age beyond which a resumed record is a
	// crash leftover, not a completed rebuild.
	Staleness time.Duration
}

// DefaultRebuildConfig returns the stock rebuild timing.
func DefaultRebuildConfig() RebuildConfig {
	return RebuildConfig{
		Timeout:   2 * time.Minute,
		Staleness: 10 * time.Minute,
	}
}

type rebuildParams struct {
	Request string `json:"request"`
}

// Rebuild tracks the externally driven rebuild step. It is the simpler
// instance of the durable task pattern: a clean host restart while the
// record is pending is itself the success signal, reported from the
// resumed process using the persisted start timestamp.
type Rebuild struct {
	rec   Record
	env   host.Environment
	out   Responder
	clock Clock
	sched Scheduler
	audit store.Auditor
	cfg   RebuildConfig

	subscribed bool
}

// NewRebuild creates the rebuild tracker bound to its collaborators.
func NewRebuild(kv store.KV, env host.Environment, out Responder, clock Clock, sched Scheduler, cfg RebuildConfig) *Rebuild {
	return &Rebuild{
		rec:   NewRecord("rebuild", kv),
		env:   env,
		out:   out,
		clock: clock,
		sched: sched,
		cfg:   cfg,
	}
}

// SetAuditor wires the optional terminal-outcome audit trail.
func (r *Rebuild) SetAuditor(a store.Auditor) { r.audit = a }

// Pending reports whether a rebuild is outstanding.
func (r *Rebuild) Pending() bool {
	p, err := r.rec.Pending()
	if err != nil {
		log.Printf("rebuild: pending check failed: %v", err)
		return false
	}
	return p
}

// Start persists the record, then requests the rebuild. If the rebuild
// restarts the host, the record is already durable when it happens.
func (r *Rebuild) Start(request string) error {
	if r.Pending() {
		return ErrTaskPending
	}

	blob, err := json.Marshal(rebuildParams{Request: request})
	if err != nil {
		return fmt.Errorf("encode rebuild params: %w", err)
	}
	if err := r.rec.Begin(r.clock.Now(), string(blob)); err != nil {
		return fmt.Errorf("persist rebuild record: %w", err)
	}
	r.subscribe()

	if err := r.env.RequestRebuild(); err != nil {
		r.finish("failure", fmt.Sprintf("rebuild failed to start: %v", err), request)
		return nil
	}
	log.Println("rebuild: requested")
	return nil
}

// Resume is called on every process start-up. A pending record within the
// staleness window means the host came back from a rebuild-triggered
// restart: implicit success, reported with the duration computed from the
// persisted start time. An older record is a crash leftover and aborts.
func (r *Rebuild) Resume() {
	if !r.Pending() {
		return
	}
	start, err := r.rec.StartTime()
	if err != nil {
		log.Printf("rebuild: resume read failed: %v", err)
		return
	}
	p := r.params()
	elapsed := r.clock.Now().Sub(start)

	if elapsed > r.cfg.Staleness {
		r.finish("aborted", "rebuild aborted: stale record from a previous session", p.Request)
		return
	}
	r.finish("success", fmt.Sprintf("rebuild completed in %.1fs", elapsed.Seconds()), p.Request)
}

func (r *Rebuild) subscribe() {
	if r.subscribed {
		return
	}
	r.subscribed = true
	r.sched.Register("rebuild", r.Tick)
}

func (r *Rebuild) params() rebuildParams {
	var p rebuildParams
	blob, err := r.rec.Params()
	if err == nil && blob != "" {
		if err := json.Unmarshal([]byte(blob), &p); err != nil {
			log.Printf("rebuild: bad params blob: %v", err)
		}
	}
	return p
}

// Tick watches for an in-process failure report. A rebuild that errors
// never restarts the host, so the failure must be surfaced from here; a
// rebuild that hangs is bounded by the timeout.
func (r *Rebuild) Tick() {
	if !r.Pending() {
		return
	}
	start, err := r.rec.StartTime()
	if err != nil {
		log.Printf("rebuild: tick read failed: %v", err)
		return
	}
	p := r.params()

	if msg := r.env.RebuildError(); msg != "" {
		r.finish("failure", fmt.Sprintf("rebuild failed: %s", msg), p.Request)
		return
	}
	if elapsed := r.clock.Now().Sub(start); elapsed >= r.cfg.Timeout {
		r.finish("timeout", fmt.Sprintf("rebuild timed out after %.1fs", elapsed.Seconds()), p.Request)
		return
	}
}

// finish responds and clears the record. The rebuild tracker changes no
// environment state, so there is nothing to revert between the two.
func (r *Rebuild) finish(result, payload, request string) {
	start, _ := r.rec.StartTime()

	if err := r.out.Write(request, payload); err != nil {
		log.Printf("rebuild: write response failed: %v", err)
	}
	if err := r.rec.Clear(); err != nil {
		log.Printf("rebuild: clear record failed: %v", err)
	}
	if r.audit != nil {
		if err := r.audit.RecordOutcome("rebuild", result, payload, start, r.clock.Now()); err != nil {
			log.Printf("rebuild: audit failed: %v", err)
		}
	}
	log.Printf("rebuild: %s", payload)
}
