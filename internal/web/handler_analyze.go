package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/nutrivision/internal/analysis"
)

const maxPhotoSize = 20 * 1024 * 1024 // 20 MB

// analyzeForm holds the page controls so they can be re-rendered with the
// user's choices.
type analyzeForm struct {
	Model       string
	Temperature float64
	Instruction string
}

func (s *Server) defaultForm() analyzeForm {
	return analyzeForm{
		Model:       s.opts.DefaultModel,
		Temperature: s.opts.DefaultTemperature,
		Instruction: s.opts.DefaultInstruction,
	}
}

// parseForm reads the controls, falling back to the defaults for anything
// missing or malformed.
func (s *Server) parseForm(r *http.Request) analyzeForm {
	form := s.defaultForm()
	if model := strings.TrimSpace(r.FormValue("model")); model != "" {
		form.Model = model
	}
	if raw := r.FormValue("temperature"); raw != "" {
		if t, err := strconv.ParseFloat(raw, 64); err == nil {
			form.Temperature = t
		}
	}
	if _, ok := r.Form["instruction"]; ok {
		form.Instruction = r.FormValue("instruction")
	}
	return form
}

// msgUploadUnreadable is shown when the request body itself is rejected,
// most often because the photo is over maxPhotoSize.
const msgUploadUnreadable = "Please upload a JPG or PNG image under 20 MB."

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+1024*1024)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.logger.Info("analysis rejected", "reason", "unreadable form", "error", err)
		s.renderOutcome(w, r, s.defaultForm(), analysis.Rejected(msgUploadUnreadable))
		return
	}

	form := s.parseForm(r)

	image, err := readUpload(r, s.logger)
	if err != nil {
		s.logger.Info("analysis rejected", "reason", "unreadable upload", "error", err)
		s.renderOutcome(w, r, form, analysis.Rejected(msgUploadUnreadable))
		return
	}

	out := s.service.Analyze(r.Context(), analysis.Input{
		Model:       form.Model,
		Instruction: form.Instruction,
		Temperature: form.Temperature,
		Image:       image,
	})
	s.renderOutcome(w, r, form, out)
}

// renderOutcome writes the result fragment for HTMX requests and the full
// page otherwise.
func (s *Server) renderOutcome(w http.ResponseWriter, r *http.Request, form analyzeForm, out *analysis.Outcome) {
	if r.Header.Get("HX-Request") == "true" {
		if err := s.renderPartial(w, "partials/result.html", "result", out); err != nil {
			s.logger.Error("render partial failed", "error", err)
		}
		return
	}

	if err := s.renderPage(w,
		s.indexData(form, out),
		"base.html", "pages/index.html", "partials/result.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

// readUpload returns the bytes of the "image" field, or nil when no file was
// chosen.
func readUpload(r *http.Request, logger *slog.Logger) ([]byte, error) {
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closeWithLog(file, "upload file", logger)

	return io.ReadAll(file)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
