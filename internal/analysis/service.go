package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/nutrivision/internal/domain"
	"github.com/vbonduro/nutrivision/internal/imagecodec"
	"github.com/vbonduro/nutrivision/internal/vision"
)

// Kind classifies how an analysis ended.
type Kind string

const (
	KindSuccess    Kind = "success"
	KindEmpty      Kind = "empty"
	KindValidation Kind = "validation"
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindOther      Kind = "other"
)

// Messages shown for each failure kind.
const (
	msgNoImage     = "Please upload an image first."
	msgUnsupported = "Please upload a JPG or PNG image."
	msgEmpty       = "No text returned by the model."
)

// historyRepository is the subset of store.AnalysisStore that Service requires.
type historyRepository interface {
	Create(ctx context.Context, a *domain.Analysis) (*domain.Analysis, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.Analysis, error)
}

// Options describe the backend for user-facing messages and the models a
// request may name.
type Options struct {
	Models         []string
	BackendName    string
	ConnectionHint string
}

// Input is what the user submitted.
type Input struct {
	Model       string
	Instruction string
	Temperature float64
	Image       []byte
}

// Outcome is the presentation-ready result of one analysis. Preview holds the
// base64 PNG that was sent, when the image got that far.
type Outcome struct {
	ID          string
	Kind        Kind
	Text        string
	Message     string
	Model       string
	Temperature float64
	Preview     string
	Duration    time.Duration
}

// IsError reports whether the outcome should be presented as an error.
// KindEmpty is a warning, not an error.
func (o *Outcome) IsError() bool {
	switch o.Kind {
	case KindSuccess, KindEmpty:
		return false
	default:
		return true
	}
}

// Rejected is the outcome for a request turned away before it reached the
// service, such as an unreadable upload.
func Rejected(message string) *Outcome {
	return &Outcome{ID: uuid.NewString(), Kind: KindValidation, Message: message}
}

type Service struct {
	analyzer vision.Analyzer
	history  historyRepository
	opts     Options
	// slot admits one model call at a time; the local server cannot run two
	// vision inferences side by side on typical hardware.
	slot   chan struct{}
	logger *slog.Logger
}

// NewService builds a Service. history may be nil to disable recording.
func NewService(analyzer vision.Analyzer, history historyRepository, opts Options, logger *slog.Logger) *Service {
	if opts.BackendName == "" {
		opts.BackendName = "the model server"
	}
	return &Service{
		analyzer: analyzer,
		history:  history,
		opts:     opts,
		slot:     make(chan struct{}, 1),
		logger:   logger,
	}
}

func (s *Service) Models() []string {
	return slices.Clone(s.opts.Models)
}

func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

// ListModels returns the models the backend reports as installed, when it can.
func (s *Service) ListModels(ctx context.Context) ([]string, error) {
	lister, ok := s.analyzer.(vision.ModelLister)
	if !ok {
		return nil, errors.New("backend cannot list models")
	}
	return lister.ListModels(ctx)
}

// RecentAnalyses returns the latest recorded analyses, or nil when history is
// disabled.
func (s *Service) RecentAnalyses(ctx context.Context, limit int) ([]*domain.Analysis, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListRecent(ctx, limit)
}

// Analyze runs one analysis to completion. It never returns an error: every
// failure is classified into the returned Outcome. Once the model call starts
// it is not cancelled by ctx; the analyzer's own timeout bounds it.
func (s *Service) Analyze(ctx context.Context, in Input) *Outcome {
	out := &Outcome{
		ID:          uuid.NewString(),
		Model:       in.Model,
		Temperature: vision.ClampTemperature(in.Temperature),
	}
	logger := s.logger.With("analysis_id", out.ID, "model", out.Model)

	session := NewSession()
	if err := session.Attach(in.Image); err != nil {
		return s.fail(out, KindOther, err.Error())
	}
	image, err := session.Begin()
	if err != nil {
		logger.Info("analysis rejected", "reason", err)
		return s.fail(out, KindValidation, msgNoImage)
	}
	defer func() {
		if err := session.Finish(); err != nil {
			logger.Error("failed to finish session", "error", err)
		}
	}()

	if !slices.Contains(s.opts.Models, in.Model) {
		logger.Info("analysis rejected", "reason", "unknown model")
		return s.fail(out, KindValidation, fmt.Sprintf("Unknown model %q.", in.Model))
	}

	payload, err := imagecodec.Prepare(image)
	if err != nil {
		logger.Info("analysis rejected", "reason", err)
		if errors.Is(err, imagecodec.ErrUnsupported) {
			return s.fail(out, KindValidation, msgUnsupported)
		}
		return s.fail(out, KindOther, err.Error())
	}
	out.Preview = payload

	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return s.fail(out, KindOther, fmt.Sprintf("Analysis cancelled while waiting: %v", ctx.Err()))
	}

	logger.Info("vision analysis started", "temperature", out.Temperature, "bytes", len(image))
	start := time.Now()
	text, err := s.analyzer.Analyze(context.WithoutCancel(ctx), vision.Request{
		Model:       in.Model,
		Instruction: in.Instruction,
		Image:       payload,
		Temperature: out.Temperature,
	})
	out.Duration = time.Since(start)
	<-s.slot

	s.classify(out, text, err)
	logger.Info("vision analysis complete",
		"outcome", out.Kind,
		"duration_ms", out.Duration.Milliseconds(),
		"chars", len(out.Text),
	)
	if err != nil {
		logger.Error("vision analysis failed", "error", err)
	}

	s.record(ctx, out, in.Instruction)
	return out
}

func (s *Service) classify(out *Outcome, text string, err error) {
	switch {
	case err == nil && text == "":
		out.Kind = KindEmpty
		out.Message = msgEmpty
	case err == nil:
		out.Kind = KindSuccess
		out.Text = text
	case errors.Is(err, vision.ErrTimeout):
		out.Kind = KindTimeout
		out.Message = fmt.Sprintf("%s took too long to respond. Try again; the first call is the slowest.", s.opts.BackendName)
	case errors.Is(err, vision.ErrConnection):
		out.Kind = KindConnection
		out.Message = fmt.Sprintf("Could not connect to %s.", s.opts.BackendName)
		if s.opts.ConnectionHint != "" {
			out.Message += " " + s.opts.ConnectionHint
		}
	default:
		out.Kind = KindOther
		out.Message = fmt.Sprintf("Error connecting to %s: %v", s.opts.BackendName, err)
	}
}

func (s *Service) fail(out *Outcome, kind Kind, message string) *Outcome {
	out.Kind = kind
	out.Message = message
	return out
}

// record stores a completed model call. Failures are logged only.
func (s *Service) record(ctx context.Context, out *Outcome, instruction string) {
	if s.history == nil {
		return
	}
	_, err := s.history.Create(context.WithoutCancel(ctx), &domain.Analysis{
		AnalysisID:   out.ID,
		Model:        out.Model,
		Temperature:  out.Temperature,
		Instruction:  instruction,
		Outcome:      string(out.Kind),
		ResultText:   out.Text,
		ErrorMessage: errorMessage(out),
		DurationMS:   out.Duration.Milliseconds(),
	})
	if err != nil {
		s.logger.Error("failed to record analysis", "analysis_id", out.ID, "error", err)
	}
}

func errorMessage(out *Outcome) string {
	if out.IsError() {
		return out.Message
	}
	return ""
}
