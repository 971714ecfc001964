package bridge

import (
	"fmt"
	"log"
	"os"

	"github.com/fentz26/scenebridge/internal/command"
	"github.com/fentz26/scenebridge/internal/protocol"
	"github.com/fentz26/scenebridge/internal/scene"
	"github.com/fentz26/scenebridge/internal/task"
	"github.com/google/uuid"
)

// Bridge wires the poller, dispatcher, scene graph, and async tasks
// together. All of its methods run on the loop goroutine; nothing here is
// safe for concurrent use and nothing needs to be.
type Bridge struct {
	registry *command.Registry
	graph    *scene.Graph
	sink     *protocol.Sink
	capture  *task.Capture
	rebuild  *task.Rebuild

	requestPath string
	lastMod     int64 // unix nanos of the last consumed request

	// requestDesc identifies the request currently being dispatched, so a
	// deferring handler can hand it to the async task that will respond.
	requestDesc string
}

// New creates a bridge and registers its command handlers.
func New(requestPath string, sink *protocol.Sink, graph *scene.Graph, capture *task.Capture, rebuild *task.Rebuild) *Bridge {
	b := &Bridge{
		registry:    command.NewRegistry(),
		graph:       graph,
		sink:        sink,
		capture:     capture,
		rebuild:     rebuild,
		requestPath: requestPath,
	}
	b.registerHandlers()
	return b
}

// Registry exposes the command table (for the commands CLI surface).
func (b *Bridge) Registry() *command.Registry {
	return b.registry
}

// PollTick checks the request file for new work. It is registered on the
// loop ahead of the task callbacks.
func (b *Bridge) PollTick() {
	info, err := os.Stat(b.requestPath)
	if err != nil {
		// No request file yet.
		return
	}
	mod := info.ModTime().UnixNano()
	if mod <= b.lastMod {
		return
	}
	b.lastMod = mod

	data, err := os.ReadFile(b.requestPath)
	if err != nil {
		log.Printf("Read request failed: %v", err)
		return
	}

	envs, perr := protocol.Parse(data)
	if perr == protocol.ErrNoRequest {
		return
	}

	id := uuid.NewString()[:8]
	if perr != nil {
		b.reset()
		if err := b.sink.Write(id, "error: "+perr.Error()); err != nil {
			log.Printf("Write response failed: %v", err)
		}
		return
	}

	if len(envs) == 1 {
		env := envs[0]
		b.requestDesc = id + " " + env.Describe()
		log.Printf("Request %s", b.requestDesc)
		res := b.registry.Dispatch(env)
		b.reset()
		if res.Deferred {
			// A pending async task owns the response now.
			return
		}
		payload := res.Text
		if !res.OK {
			payload = "error: " + res.Text
		}
		if err := b.sink.Write(b.requestDesc, payload); err != nil {
			log.Printf("Write response failed: %v", err)
		}
		return
	}

	b.requestDesc = fmt.Sprintf("%s batch[%d]", id, len(envs))
	log.Printf("Request %s", b.requestDesc)
	results := b.registry.DispatchBatch(envs)
	b.reset()
	if err := b.sink.Write(b.requestDesc, protocol.FormatBatch(envs, results)); err != nil {
		log.Printf("Write response failed: %v", err)
	}
}

// reset restores the request file to the idle sentinel and swallows the
// resulting modification so the next tick does not re-read it.
func (b *Bridge) reset() {
	if err := os.WriteFile(b.requestPath, []byte(protocol.Idle), 0644); err != nil {
		log.Printf("Reset request file failed: %v", err)
		return
	}
	if info, err := os.Stat(b.requestPath); err == nil {
		b.lastMod = info.ModTime().UnixNano()
	}
}
