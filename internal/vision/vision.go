package vision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"syscall"
)

// DefaultInstruction is the instruction prefilled in the page.
const DefaultInstruction = "You are a professional nutritionist. Identify each visible food item in the image. " +
	"Estimate approximate calories per item and provide a total in this format:\n" +
	"1) Item — ~calories\n2) Item — ~calories\nTotal — ~calories\n" +
	"If uncertain, state brief assumptions."

// Temperature bounds exposed by the page slider.
const (
	MinTemperature  = 0.0
	MaxTemperature  = 1.0
	TemperatureStep = 0.05
)

var (
	// ErrValidation means the request was rejected before anything was sent.
	ErrValidation = errors.New("invalid analysis request")
	// ErrTimeout means the model server did not answer within the timeout.
	ErrTimeout = errors.New("model server timed out")
	// ErrConnection means the model server could not be reached.
	ErrConnection = errors.New("could not connect to model server")
)

// Request is a single image analysis. Image holds the base64 PNG payload.
type Request struct {
	Model       string
	Instruction string
	Image       string
	Temperature float64
}

// Analyzer sends a Request to a vision model and returns its answer as
// trimmed text. An empty string with a nil error means the model replied but
// no text could be extracted.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

// ModelLister is implemented by backends that can report which models are
// installed on the server.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// ClampTemperature forces t into [MinTemperature, MaxTemperature]. NaN maps
// to MinTemperature.
func ClampTemperature(t float64) float64 {
	if math.IsNaN(t) || t < MinTemperature {
		return MinTemperature
	}
	if t > MaxTemperature {
		return MaxTemperature
	}
	return t
}

// ClassifyTransportError tags errors returned by an HTTP round trip with
// ErrConnection or ErrTimeout. A dial failure counts as a connection error
// even when it was a connect timeout. Anything else is returned unchanged.
func ClassifyTransportError(err error) error {
	if err == nil || errors.Is(err, ErrConnection) || errors.Is(err, ErrTimeout) {
		return err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
