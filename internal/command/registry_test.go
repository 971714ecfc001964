package command

import (
	"strings"
	"testing"

	"github.com/fentz26/scenebridge/internal/protocol"
)

func TestRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	err := r.Register("Ping", "core", func(env protocol.Envelope) protocol.Result {
		return protocol.Success("pong")
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Lookup is case-insensitive.
	for _, name := range []string{"ping", "PING", "Ping"} {
		res := r.Dispatch(protocol.Envelope{Type: name})
		if !res.OK || res.Text != "pong" {
			t.Errorf("Dispatch(%s) = %+v", name, res)
		}
	}
}

func TestRegisterErrors(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("", "core", nil); err == nil {
		t.Error("Empty name should fail")
	}
	handler := func(env protocol.Envelope) protocol.Result { return protocol.Success("") }
	if err := r.Register("get", "scene", handler); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("GET", "scene", handler); err == nil {
		t.Error("Duplicate (case-insensitive) name should fail")
	}
}

func TestUnknownCommand(t *testing.T) {
	r := NewRegistry()
	res := r.Dispatch(protocol.Envelope{Type: "frobnicate"})
	if res.OK {
		t.Error("Unknown command should fail")
	}
	if !strings.Contains(res.Text, "frobnicate") {
		t.Errorf("Failure should name the command, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "help") {
		t.Errorf("Failure should point at help, got %q", res.Text)
	}
}

func TestPanicRecovery(t *testing.T) {
	r := NewRegistry()
	r.Register("boom", "core", func(env protocol.Envelope) protocol.Result {
		panic("handler bug")
	})

	res := r.Dispatch(protocol.Envelope{Type: "boom"})
	if res.OK {
		t.Error("Panicking handler should yield a failure")
	}
	if !strings.Contains(res.Text, "handler bug") {
		t.Errorf("Failure should carry the panic value, got %q", res.Text)
	}
}

func TestDispatchBatch(t *testing.T) {
	r := NewRegistry()
	var order []string
	r.Register("a", "t", func(env protocol.Envelope) protocol.Result {
		order = append(order, "a")
		return protocol.Success("ok a")
	})
	r.Register("b", "t", func(env protocol.Envelope) protocol.Result {
		order = append(order, "b")
		panic("b broke")
	})
	r.Register("c", "t", func(env protocol.Envelope) protocol.Result {
		order = append(order, "c")
		return protocol.Success("ok c")
	})

	envs := []protocol.Envelope{{Type: "a"}, {Type: "b"}, {Type: "c"}, {Type: "missing"}}
	results := r.DispatchBatch(envs)

	if len(results) != len(envs) {
		t.Fatalf("Expected %d results, got %d", len(envs), len(results))
	}
	// Sequential, in input order, failure does not abort the rest.
	if strings.Join(order, "") != "abc" {
		t.Errorf("Execution order = %v", order)
	}
	if !results[0].OK || results[1].OK || !results[2].OK || results[3].OK {
		t.Errorf("Result flags = %+v", results)
	}

	out := protocol.FormatBatch(envs, results)
	if !strings.HasPrefix(out, "2/4 succeeded") {
		t.Errorf("Batch summary = %q", out)
	}
}

func TestHelpAndNames(t *testing.T) {
	r := NewRegistry()
	handler := func(env protocol.Envelope) protocol.Result { return protocol.Success("") }
	r.Register("set", "scene", handler)
	r.Register("get", "scene", handler)
	r.Register("ping", "core", handler)

	names := r.Names()
	if len(names) != 3 || names[0] != "get" {
		t.Errorf("Names = %v", names)
	}

	help := r.Help()
	if !strings.Contains(help, "core: ping") {
		t.Errorf("Help missing core category:\n%s", help)
	}
	if !strings.Contains(help, "scene: get, set") {
		t.Errorf("Help missing sorted scene commands:\n%s", help)
	}
}
