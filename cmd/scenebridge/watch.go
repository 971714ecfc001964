package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fentz26/scenebridge/internal/store"
	"github.com/fentz26/scenebridge/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the mailbox and task outcomes interactively",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	w := tui.NewWatch(cfg.RequestPath(), cfg.ResponsePath(), s)
	if err := w.Run(); err != nil {
		return fmt.Errorf("watch UI error: %w", err)
	}
	return nil
}
