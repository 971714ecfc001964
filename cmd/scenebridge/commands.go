package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/scenebridge/internal/bridge"
	"github.com/fentz26/scenebridge/internal/host/simhost"
	"github.com/fentz26/scenebridge/internal/protocol"
	"github.com/fentz26/scenebridge/internal/scene"
	"github.com/fentz26/scenebridge/internal/store"
	"github.com/fentz26/scenebridge/internal/task"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the request types the bridge understands",
	Run:   runCommands,
}

func runCommands(cmd *cobra.Command, args []string) {
	// A throwaway wiring; only the command table is wanted.
	kv := store.NewMemory()
	env := simhost.New()
	sink := protocol.NewSink(os.DevNull)
	loop := bridge.NewLoop(time.Second)
	capture := task.NewCapture(kv, env, sink, task.SystemClock(), loop, task.DefaultCaptureConfig())
	rebuild := task.NewRebuild(kv, env, sink, task.SystemClock(), loop, task.DefaultRebuildConfig())
	b := bridge.New("", sink, scene.New(scene.NewCatalog()), capture, rebuild)

	fmt.Println(b.Registry().Help())
}
