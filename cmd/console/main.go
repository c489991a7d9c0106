package main

import (
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/gm-engine/internal/config"
	"github.com/jwebster45206/gm-engine/internal/logger"
	"github.com/jwebster45206/gm-engine/internal/services"
	"github.com/jwebster45206/gm-engine/internal/session"
	"github.com/jwebster45206/gm-engine/internal/storage"
)

const logFileName = "console.log"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; log lines go to a file.
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", logFileName, err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close()
	}()
	log := logger.SetupWriter(cfg, logFile)

	seeds := storage.NewSeedLoader(cfg.DataDir, log)
	log.Info("Starting console", "data_dir", cfg.DataDir, "llm_provider", cfg.LLMProvider)

	opts := session.Options{
		HistoryLimit: cfg.PromptHistoryLimit,
		FetchTimeout: cfg.FetchTimeout,
		Logger:       log,
	}
	ui := NewConsoleUI(seeds, newTextSource(cfg, log), opts)

	p := tea.NewProgram(ui,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
	if m, ok := final.(ConsoleUI); ok && m.session != nil {
		m.session.Close()
	}
}

func newTextSource(cfg *config.Config, log *slog.Logger) services.TextSource {
	if cfg.LLMProvider == "anthropic" {
		svc := services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, log)
		if cfg.AnthropicBaseURL != "" {
			svc = svc.WithBaseURL(cfg.AnthropicBaseURL)
		}
		return svc
	}
	return services.NewMockTextSource()
}
