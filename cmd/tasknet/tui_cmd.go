package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fentz26/tasknet/internal/engine"
	"github.com/fentz26/tasknet/internal/store"
	"github.com/fentz26/tasknet/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive canvas",
	RunE:  runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	client, creds, err := authedClient()
	if err != nil {
		return err
	}

	eng := engine.New(client, creds.Username)

	// Sync chatter must not land on the terminal the canvas owns.
	if dir, err := os.UserConfigDir(); err == nil {
		logPath := filepath.Join(dir, "tasknet", "client.log")
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
			defer f.Close()
			eng.SetLogger(log.New(f, "", log.LstdFlags))
		}
	}

	// The offline cache is best-effort: a broken cache never blocks the
	// canvas, it just means a cold start.
	var cache *store.Store
	if dir, err := os.UserConfigDir(); err == nil {
		if s, err := store.New(filepath.Join(dir, "tasknet", "cache.db")); err == nil {
			cache = s
			defer cache.Close()
			if tasks, deps, err := cache.LoadSnapshot(); err == nil && len(tasks) > 0 {
				eng.LoadSnapshot(tasks, deps)
			}
		}
	}

	poller := engine.NewPoller(eng, engine.DefaultPollInterval)

	app := tui.New(eng, poller, cache)
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
