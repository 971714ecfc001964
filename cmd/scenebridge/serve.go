package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fentz26/scenebridge/internal/bridge"
	"github.com/fentz26/scenebridge/internal/host/simhost"
	"github.com/fentz26/scenebridge/internal/protocol"
	"github.com/fentz26/scenebridge/internal/scene"
	"github.com/fentz26/scenebridge/internal/store"
	"github.com/fentz26/scenebridge/internal/task"
)

var serveDB string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge loop against a simulated host",
	Long:  `Starts the bridge: polls the request file, dispatches commands against the scene graph, and runs the durable async tasks.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDB, "db", "", "Path to SQLite database (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveDB != "" {
		cfg.DBPath = serveDB
	}
	if err := os.MkdirAll(cfg.BridgeDir, 0755); err != nil {
		return err
	}

	log.Println("Starting scenebridge...")

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}

	env := simhost.New()
	catalog := defaultCatalog()
	graph := scene.New(catalog)
	sink := protocol.NewSink(cfg.ResponsePath())
	loop := bridge.NewLoop(cfg.Tick())

	capture := task.NewCapture(s, env, sink, task.SystemClock(), loop, cfg.CaptureConfig())
	capture.SetAuditor(s)
	rebuild := task.NewRebuild(s, env, sink, task.SystemClock(), loop, cfg.RebuildConfig())
	rebuild.SetAuditor(s)

	b := bridge.New(cfg.RequestPath(), sink, graph, capture, rebuild)

	// The poller goes first so a new request is dispatched before the task
	// callbacks run on the same tick.
	loop.Register("poll", b.PollTick)
	capture.Resume()
	rebuild.Resume()

	// Seed the mailbox so controllers can poll it from the start.
	if _, err := os.Stat(cfg.RequestPath()); os.IsNotExist(err) {
		if err := os.WriteFile(cfg.RequestPath(), []byte(protocol.Idle), 0644); err != nil {
			s.Close()
			return err
		}
	}

	loop.Start()
	log.Printf("Watching %s", cfg.RequestPath())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	loop.Stop()

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// defaultCatalog seeds the asset table the simulated host exposes.
func defaultCatalog() *scene.Catalog {
	c := scene.NewCatalog()
	c.Add(scene.Asset{Path: "Assets/Materials/Default.mat", Type: "Material"})
	c.Add(scene.Asset{Path: "Assets/Materials/Steel.mat", Type: "Material"})
	c.Add(scene.Asset{Path: "Assets/Materials/Glass.mat", Type: "Material"})
	c.Add(scene.Asset{Path: "Assets/Prefabs/Crate.prefab", Type: "Prefab"})
	return c
}
