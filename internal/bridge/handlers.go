package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fentz26/scenebridge/internal/protocol"
	"github.com/fentz26/scenebridge/internal/scene"
	"github.com/fentz26/scenebridge/internal/task"
)

// registerHandlers builds the command table. Registration errors are
// impossible here (names are unique literals), so they are dropped.
func (b *Bridge) registerHandlers() {
	b.registry.Register("ping", "core", b.handlePing)
	b.registry.Register("help", "core", b.handleHelp)
	b.registry.Register("get", "scene", b.handleGet)
	b.registry.Register("set", "scene", b.handleSet)
	b.registry.Register("add", "scene", b.handleAdd)
	b.registry.Register("remove", "scene", b.handleRemove)
	b.registry.Register("list", "scene", b.handleList)
	b.registry.Register("find", "scene", b.handleFind)
	b.registry.Register("capture", "task", b.handleCapture)
	b.registry.Register("rebuild", "task", b.handleRebuild)
}

func (b *Bridge) handlePing(env protocol.Envelope) protocol.Result {
	return protocol.Success("pong")
}

func (b *Bridge) handleHelp(env protocol.Envelope) protocol.Result {
	return protocol.Success(b.registry.Help())
}

func (b *Bridge) handleGet(env protocol.Envelope) protocol.Result {
	if env.Path == "" || env.Component == "" || env.Property == "" {
		return protocol.Failure(`get needs "path", "component" and "property" (example: {"type":"get","path":"Player/Arm","component":"Transform","property":"scale"})`)
	}
	v, err := b.graph.GetProperty(env.Path, env.Component, env.Property)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	return protocol.Success("%s", formatValue(v))
}

func (b *Bridge) handleSet(env protocol.Envelope) protocol.Result {
	if env.Path == "" || env.Component == "" {
		return protocol.Failure(`set needs "path" and "component" (example: {"type":"set","path":"Player/Arm","component":"Transform","property":"scale","value":[1,2,3]})`)
	}

	// Multi-field form: report each field separately so a batch set can
	// partially succeed.
	if len(env.Values) > 0 {
		names, errs := b.graph.SetProperties(env.Path, env.Component, env.Values)
		ok := 0
		var lines []string
		for i, name := range names {
			if errs[i] != nil {
				lines = append(lines, fmt.Sprintf("%s: %v", name, errs[i]))
				continue
			}
			ok++
			lines = append(lines, fmt.Sprintf("%s: ok", name))
		}
		text := fmt.Sprintf("%d/%d properties set\n%s", ok, len(names), strings.Join(lines, "\n"))
		return protocol.Result{OK: ok == len(names), Text: text}
	}

	if env.Property == "" {
		return protocol.Failure(`set needs "property" and "value", or a "values" map`)
	}
	if err := b.graph.SetProperty(env.Path, env.Component, env.Property, env.Value); err != nil {
		return protocol.Failure("%v", err)
	}
	return protocol.Success("set %s/%s.%s", env.Path, env.Component, env.Property)
}

func (b *Bridge) handleAdd(env protocol.Envelope) protocol.Result {
	if env.Path == "" {
		return protocol.Failure(`add needs "path" (example: {"type":"add","path":"World/Rock"} or {"type":"add","path":"World/Rock","component":"Transform"})`)
	}
	if env.Component != "" {
		if err := b.graph.AttachComponent(env.Path, env.Component); err != nil {
			return protocol.Failure("%v", err)
		}
		return protocol.Success("attached %s to %s", env.Component, env.Path)
	}
	if err := b.graph.Create(env.Path); err != nil {
		return protocol.Failure("%v", err)
	}
	return protocol.Success("created %s", env.Path)
}

func (b *Bridge) handleRemove(env protocol.Envelope) protocol.Result {
	if env.Path == "" {
		return protocol.Failure(`remove needs "path" (example: {"type":"remove","path":"World/Rock"})`)
	}
	if err := b.graph.Delete(env.Path); err != nil {
		return protocol.Failure("%v", err)
	}
	return protocol.Success("removed %s", env.Path)
}

func (b *Bridge) handleList(env protocol.Envelope) protocol.Result {
	out, err := b.graph.Tree(env.Path, env.Recursive)
	if err != nil {
		return protocol.Failure("%v", err)
	}
	if out == "" {
		return protocol.Success("(empty scene)")
	}
	return protocol.Success("%s", out)
}

func (b *Bridge) handleFind(env protocol.Envelope) protocol.Result {
	if env.Query == "" {
		return protocol.Failure(`find needs "query" (example: {"type":"find","query":"arm"})`)
	}
	paths := b.graph.Find(env.Query)
	if env.Limit > 0 && len(paths) > env.Limit {
		paths = paths[:env.Limit]
	}
	if len(paths) == 0 {
		return protocol.Success("no matches for %q", env.Query)
	}
	return protocol.Success("%s", strings.Join(paths, "\n"))
}

func (b *Bridge) handleCapture(env protocol.Envelope) protocol.Result {
	if env.Output == "" {
		return protocol.Failure(`capture needs "output" (example: {"type":"capture","output":"shots/scene.png","wait":1.5})`)
	}
	err := b.capture.Start(env.Output, env.Wait, b.requestDesc)
	if err == task.ErrTaskPending {
		return protocol.Failure("a capture is already in progress")
	}
	if err != nil {
		return protocol.Failure("%v", err)
	}
	return protocol.DeferredResult()
}

func (b *Bridge) handleRebuild(env protocol.Envelope) protocol.Result {
	err := b.rebuild.Start(b.requestDesc)
	if err == task.ErrTaskPending {
		return protocol.Failure("a rebuild is already in progress")
	}
	if err != nil {
		return protocol.Failure("%v", err)
	}
	return protocol.DeferredResult()
}

// formatValue renders a canonical property value for the response channel.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case *scene.Object:
		return "*" + t.Path()
	case *scene.Component:
		return "component " + t.Name
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
