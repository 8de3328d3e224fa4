package web

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/vbonduro/nutrivision/internal/analysis"
	"github.com/vbonduro/nutrivision/internal/vision"
)

const (
	historyLimit      = 50
	modelCheckTimeout = 5 * time.Second
)

func (s *Server) indexData(form analyzeForm, out *analysis.Outcome) map[string]any {
	return map[string]any{
		"Form":           form,
		"Models":         s.service.Models(),
		"MinTemperature": vision.MinTemperature,
		"MaxTemperature": vision.MaxTemperature,
		"Step":           vision.TemperatureStep,
		"Outcome":        out,
		"HistoryEnabled": s.service.HistoryEnabled(),
		"RequestTimeout": s.opts.RequestTimeout,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.renderPage(w,
		s.indexData(s.defaultForm(), nil),
		"base.html", "pages/index.html", "partials/result.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

type modelStatus struct {
	Name      string
	Installed bool
}

// handleModels reports which configured models the backend has installed.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), modelCheckTimeout)
	defer cancel()

	data := map[string]any{}
	installed, err := s.service.ListModels(ctx)
	if err != nil {
		s.logger.Warn("list models failed", "error", err)
		data["Error"] = err.Error()
	} else {
		statuses := make([]modelStatus, 0)
		for _, name := range s.service.Models() {
			statuses = append(statuses, modelStatus{Name: name, Installed: slices.Contains(installed, name)})
		}
		data["Models"] = statuses
	}

	if err := s.renderPartial(w, "partials/models.html", "models", data); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.service.HistoryEnabled() {
		http.NotFound(w, r)
		return
	}

	analyses, err := s.service.RecentAnalyses(r.Context(), historyLimit)
	if err != nil {
		http.Error(w, "failed to list history", http.StatusInternalServerError)
		s.logger.Error("list history failed", "error", err)
		return
	}

	if err := s.renderPage(w,
		map[string]any{"Analyses": analyses, "HistoryEnabled": true},
		"base.html", "pages/history.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.logger.Error("write health failed", "error", err)
	}
}
