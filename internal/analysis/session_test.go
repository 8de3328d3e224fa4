package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/nutrivision/internal/vision"
)

func TestSessionHappyPath(t *testing.T) {
	s := NewSession()
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Attach([]byte("first")))
	require.NoError(t, s.Attach([]byte("second")))
	assert.Equal(t, StateReady, s.State())

	img, err := s.Begin()
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), img)
	assert.Equal(t, StateInFlight, s.State())

	require.NoError(t, s.Finish())
	assert.Equal(t, StateIdle, s.State())

	// The image does not survive the analysis.
	_, err = s.Begin()
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestSessionBeginWithoutImage(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Attach(nil))

	_, err := s.Begin()

	assert.ErrorIs(t, err, ErrNoImage)
	assert.ErrorIs(t, err, vision.ErrValidation)
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionInvalidTransitions(t *testing.T) {
	s := NewSession()
	assert.ErrorIs(t, s.Finish(), ErrInvalidTransition)

	require.NoError(t, s.Attach([]byte("img")))
	assert.ErrorIs(t, s.Finish(), ErrInvalidTransition)

	_, err := s.Begin()
	require.NoError(t, err)

	assert.ErrorIs(t, s.Attach([]byte("other")), ErrInvalidTransition)
	_, err = s.Begin()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateInFlight, s.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "in_flight", StateInFlight.String())
	assert.Equal(t, "state(9)", State(9).String())
}
