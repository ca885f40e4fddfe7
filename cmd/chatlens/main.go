package main

import (
	"context"
	"fmt"
	"os"

	"chatlens/internal/config"
	"chatlens/internal/export"
	"chatlens/internal/logging"
	"chatlens/internal/store"
	"chatlens/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chatlens:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	closeLog, err := logging.Setup(cfg.LogPath)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := store.Open(cfg.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Seed > 0 {
		if err := store.Seed(context.Background(), st, cfg.Seed); err != nil {
			return err
		}
	}

	exp, err := export.New(cfg.ExportDir)
	if err != nil {
		return err
	}

	p := tea.NewProgram(ui.NewModel(cfg, st, exp), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
