package analysis

import (
	"errors"
	"fmt"

	"github.com/vbonduro/nutrivision/internal/vision"
)

// State is the position of a Session in the upload → analyze → result cycle.
type State int

const (
	StateIdle State = iota
	StateReady
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateInFlight:
		return "in_flight"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNoImage is returned by Begin when nothing has been attached.
	ErrNoImage = fmt.Errorf("%w: no image uploaded", vision.ErrValidation)
	// ErrInvalidTransition is returned for any move the state machine does
	// not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Session owns the image for exactly one analysis:
//
//	Idle --Attach--> Ready --Begin--> InFlight --Finish--> Idle
//
// Begin from Idle fails with ErrNoImage and leaves the session Idle.
type Session struct {
	state State
	image []byte
}

func NewSession() *Session {
	return &Session{state: StateIdle}
}

func (s *Session) State() State {
	return s.state
}

// Attach stores image, replacing any earlier one. An empty image is ignored.
func (s *Session) Attach(image []byte) error {
	if s.state == StateInFlight {
		return fmt.Errorf("%w: attach while %s", ErrInvalidTransition, s.state)
	}
	if len(image) == 0 {
		return nil
	}
	s.image = image
	s.state = StateReady
	return nil
}

// Begin moves Ready to InFlight and hands out the attached image.
func (s *Session) Begin() ([]byte, error) {
	switch s.state {
	case StateReady:
		s.state = StateInFlight
		return s.image, nil
	case StateIdle:
		return nil, ErrNoImage
	default:
		return nil, fmt.Errorf("%w: begin while %s", ErrInvalidTransition, s.state)
	}
}

// Finish ends the in-flight analysis, whatever its result, and discards the
// image.
func (s *Session) Finish() error {
	if s.state != StateInFlight {
		return fmt.Errorf("%w: finish while %s", ErrInvalidTransition, s.state)
	}
	s.state = StateIdle
	s.image = nil
	return nil
}
