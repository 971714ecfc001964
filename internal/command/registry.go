// Package command maps command names to handlers and dispatches envelopes.
package command

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/fentz26/scenebridge/internal/protocol"
)

// Handler executes one command. Handlers own their idempotency; the
// dispatcher performs no retries and no deduplication. A handler returning
// a deferred result hands response ownership to a pending async task.
type Handler func(protocol.Envelope) protocol.Result

type registration struct {
	name     string
	category string
	handler  Handler
}

// Registry is the explicit name-to-handler table built at start-up.
// Lookup is case-insensitive on the command name.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*registration)}
}

// Register adds a command. Registering an empty or duplicate name is an
// error.
func (r *Registry) Register(name, category string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	key := strings.ToLower(name)
	if _, exists := r.commands[key]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	r.commands[key] = &registration{name: key, category: category, handler: h}
	return nil
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch executes one envelope. An unknown command and a panicking
// handler both become failure results; nothing escalates past this
// boundary.
func (r *Registry) Dispatch(env protocol.Envelope) (res protocol.Result) {
	r.mu.RLock()
	reg, ok := r.commands[strings.ToLower(env.Type)]
	r.mu.RUnlock()

	if !ok {
		return protocol.Failure("unknown command %q (see \"help\" for the command list)", env.Type)
	}

	defer func() {
		if p := recover(); p != nil {
			log.Printf("Handler %s panicked: %v", reg.name, p)
			res = protocol.Failure("internal error in %q: %v", reg.name, p)
		}
	}()
	return reg.handler(env)
}

// DispatchBatch executes envelopes strictly sequentially, in order, so
// later entries observe the effects of earlier ones. A failing entry never
// aborts the rest. The result slice has exactly one entry per input, in
// input order.
func (r *Registry) DispatchBatch(envs []protocol.Envelope) []protocol.Result {
	results := make([]protocol.Result, len(envs))
	for i, env := range envs {
		results[i] = r.Dispatch(env)
	}
	return results
}

// Help renders the generated help surface: commands grouped by category.
func (r *Registry) Help() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byCategory := make(map[string][]string)
	for _, reg := range r.commands {
		byCategory[reg.category] = append(byCategory[reg.category], reg.name)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("commands:\n")
	for _, c := range categories {
		names := byCategory[c]
		sort.Strings(names)
		fmt.Fprintf(&b, "  %s: %s\n", c, strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
