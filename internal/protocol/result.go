package protocol

import (
	"fmt"
	"strings"
)

// Result is the outcome of one dispatched command.
type Result struct {
	OK   bool
	Text string

	// Deferred marks the sentinel result: a pending async task now owns
	// the response and will write it on a later tick.
	Deferred bool
}

// Success builds a successful result.
func Success(format string, args ...any) Result {
	return Result{OK: true, Text: fmt.Sprintf(format, args...)}
}

// Failure builds a failed result.
func Failure(format string, args ...any) Result {
	return Result{OK: false, Text: fmt.Sprintf(format, args...)}
}

// DeferredResult is the "no response yet" sentinel.
func DeferredResult() Result {
	return Result{Deferred: true}
}

// FirstLine returns the first line of a result's text.
func (r Result) FirstLine() string {
	if i := strings.IndexByte(r.Text, '\n'); i >= 0 {
		return r.Text[:i]
	}
	return r.Text
}

// FormatBatch renders an ordered batch outcome: a summary line followed by
// one line per entry in input order.
func FormatBatch(envs []Envelope, results []Result) string {
	succeeded := 0
	for _, r := range results {
		if r.OK || r.Deferred {
			succeeded++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d succeeded\n", succeeded, len(results))
	for i, r := range results {
		mark, line := "x", r.FirstLine()
		if r.Deferred {
			// The async task writes its own response later; the batch
			// entry just records that it started.
			mark, line = "+", "deferred"
		} else if r.OK {
			mark = "+"
		}
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i, mark, envs[i].Type, line)
	}
	return strings.TrimRight(b.String(), "\n")
}
