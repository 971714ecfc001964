// Package task implements the durable state machine for operations that
// span multiple scheduler ticks and survive a host restart.
//
// The discipline is the same for every task kind: persist the full record
// before triggering the side effect that may restart the host, resume from
// the record on every start-up, and on reaching a terminal state write the
// response, revert the environment, then clear the record - in that order,
// so a crash between any two steps leaves the environment restored and at
// worst a stale record for the next start-up to clean.
package task

import (
	"errors"
	"time"

	"github.com/fentz26/scenebridge/internal/store"
)

// ErrTaskPending is returned when a task of a kind is started while one is
// already outstanding. Only one task of each kind may be in flight.
var ErrTaskPending = errors.New("a task of this kind is already pending")

// Clock abstracts wall-clock time so the state machine is testable with a
// deterministic time source.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real-time clock.
func SystemClock() Clock { return systemClock{} }

// Scheduler registers cooperative tick callbacks. Registration order is
// invocation order within a tick.
type Scheduler interface {
	Register(name string, fn func())
}

// Responder writes a task's final response to the response channel.
type Responder interface {
	Write(request, payload string) error
}

// Record is the persisted task state for one task kind, stored under
// well-known keys in the durable store. If the pending flag is true, the
// other keys are the only source of truth for resuming or aborting after a
// restart.
type Record struct {
	kind string
	kv   store.KV
}

// NewRecord binds a task kind's record keys to a durable store.
func NewRecord(kind string, kv store.KV) Record {
	return Record{kind: kind, kv: kv}
}

func (r Record) key(suffix string) string { return r.kind + "." + suffix }

// Pending reports whether a task of this kind is outstanding.
func (r Record) Pending() (bool, error) {
	return store.GetBool(r.kv, r.key("pending"), false)
}

// StartTime returns the persisted start timestamp (zero when absent).
func (r Record) StartTime() (time.Time, error) {
	return store.GetTime(r.kv, r.key("startTime"))
}

// Params returns the persisted task parameter blob.
func (r Record) Params() (string, error) {
	return r.kv.Get(r.key("params"), "")
}

// Performed reports whether the side-effecting action already ran. It
// guards the perform-exactly-once rule across racing ticks and restarts.
func (r Record) Performed() (bool, error) {
	return store.GetBool(r.kv, r.key("captured"), false)
}

// SetPerformed marks the side-effecting action as done.
func (r Record) SetPerformed() error {
	return store.SetBool(r.kv, r.key("captured"), true)
}

// Begin persists a complete record. The pending flag is written last: a
// restart between any two writes leaves pending unset and the partial
// record inert. Callers trigger the restart-prone side effect only after
// Begin returns.
func (r Record) Begin(start time.Time, params string) error {
	if err := store.SetTime(r.kv, r.key("startTime"), start); err != nil {
		return err
	}
	if err := r.kv.Set(r.key("params"), params); err != nil {
		return err
	}
	if err := store.SetBool(r.kv, r.key("captured"), false); err != nil {
		return err
	}
	return store.SetBool(r.kv, r.key("pending"), true)
}

// Clear removes the record. The pending flag goes first: a crash mid-clear
// leaves orphaned keys that the next Begin overwrites, never a resumable
// half-record.
func (r Record) Clear() error {
	if err := r.kv.Delete(r.key("pending")); err != nil {
		return err
	}
	if err := r.kv.Delete(r.key("captured")); err != nil {
		return err
	}
	if err := r.kv.Delete(r.key("params")); err != nil {
		return err
	}
	return r.kv.Delete(r.key("startTime"))
}
