package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"social-scraper/internal/app"
	"social-scraper/internal/config"
	"social-scraper/internal/export"
	"social-scraper/internal/tui"
)

func main() {
	configManager := config.NewManager()
	cfg, err := configManager.Load(os.Getenv("SS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	defer configManager.Close()

	// Console logs would draw over the UI
	logger := configManager.GetLogger()
	if out := cfg.Log.Output; out == "" || out == "stdout" || out == "stderr" {
		logger = logger.Output(io.Discard)
		if os.Getenv("DEBUG") != "" {
			f, err := tea.LogToFile("debug.log", "tui")
			if err == nil {
				defer f.Close()
				logger = logger.Output(f)
			}
		}
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing scraper: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		format = export.FormatCSV
	}

	model := tui.InitialModel(tui.Options{
		Runner:    a.Pipeline,
		MaxItems:  cfg.Scrape.MaxItems,
		ExportDir: cfg.Export.Dir,
		Export: export.ExportConfig{
			Format:    format,
			WithExtra: cfg.Export.WithExtra,
		},
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
