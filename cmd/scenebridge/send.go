package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var sendTimeout time.Duration

var sendCmd = &cobra.Command{
	Use:   "send <json>",
	Short: "Send one request through the mailbox and print the response",
	Long: `Writes the given JSON to the request file, then polls the response file
until its modification time advances past the write. Pass "-" to read the
request body from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "How long to wait for a response")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	body := args[0]
	if body == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		body = string(data)
	}

	// Baseline before the write; a response is anything newer than this.
	var baseline time.Time
	if info, err := os.Stat(cfg.ResponsePath()); err == nil {
		baseline = info.ModTime()
	}

	if err := os.WriteFile(cfg.RequestPath(), []byte(body), 0644); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	deadline := time.Now().Add(sendTimeout)
	for time.Now().Before(deadline) {
		info, err := os.Stat(cfg.ResponsePath())
		if err == nil && info.ModTime().After(baseline) {
			data, err := os.ReadFile(cfg.ResponsePath())
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}
			fmt.Print(string(data))
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("no response within %v (is \"scenebridge serve\" running?)", sendTimeout)
}
