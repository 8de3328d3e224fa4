package main

import (
	"database/sql"
	"log"
	"log/slog"

	"github.com/vbonduro/nutrivision/internal/analysis"
	"github.com/vbonduro/nutrivision/internal/config"
	"github.com/vbonduro/nutrivision/internal/db"
	"github.com/vbonduro/nutrivision/internal/logging"
	"github.com/vbonduro/nutrivision/internal/store"
	"github.com/vbonduro/nutrivision/internal/vision"
	claudevision "github.com/vbonduro/nutrivision/internal/vision/claude"
	ollamavision "github.com/vbonduro/nutrivision/internal/vision/ollama"
	"github.com/vbonduro/nutrivision/internal/web"
	"github.com/vbonduro/nutrivision/internal/web/templates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	var history *store.AnalysisStore
	if cfg.HistoryEnabled() {
		database, err := db.Open(cfg.HistoryDBPath)
		if err != nil {
			logger.Error("failed to open history database", "path", cfg.HistoryDBPath, "error", err)
			return
		}
		defer closeDB(database, logger)
		history = store.NewAnalysisStore(database)
		logger.Info("analysis history enabled", "path", cfg.HistoryDBPath)
	}

	analyzer, opts := newVisionAnalyzer(cfg, logger)
	var svc *analysis.Service
	if history != nil {
		svc = analysis.NewService(analyzer, history, opts, logger)
	} else {
		// A nil *AnalysisStore inside the interface would look enabled.
		svc = analysis.NewService(analyzer, nil, opts, logger)
	}

	server := web.NewServer(svc, templates.FS, web.Options{
		DefaultModel:       cfg.DefaultModel(),
		DefaultTemperature: cfg.DefaultTemperature,
		DefaultInstruction: vision.DefaultInstruction,
		RequestTimeout:     cfg.RequestTimeout,
	}, logger)

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func newVisionAnalyzer(cfg *config.Config, logger *slog.Logger) (vision.Analyzer, analysis.Options) {
	opts := analysis.Options{Models: cfg.Models}

	switch cfg.VisionBackend {
	case "claude":
		logger.Info("using Claude vision backend", "models", cfg.Models)
		opts.BackendName = "Claude"
		opts.ConnectionHint = "Check your network connection."
		return claudevision.NewClaudeAnalyzer(claudevision.Config{
			APIKey:  cfg.ClaudeAPIKey,
			Timeout: cfg.RequestTimeout,
		}), opts
	default:
		logger.Info("using Ollama vision backend", "host", cfg.OllamaHost, "models", cfg.Models, "timeout", cfg.RequestTimeout)
		opts.BackendName = "Ollama"
		opts.ConnectionHint = "Ensure `ollama serve` is running."
		return ollamavision.NewClient(ollamavision.Config{
			Host:    cfg.OllamaHost,
			Timeout: cfg.RequestTimeout,
		}), opts
	}
}

func closeDB(database *sql.DB, logger *slog.Logger) {
	if err := database.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
}
