package vision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampTemperature(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0.2, want: 0.2},
		{in: 0, want: 0},
		{in: 1, want: 1},
		{in: -0.3, want: 0},
		{in: 1.7, want: 1},
		{in: math.Inf(1), want: 1},
		{in: math.Inf(-1), want: 0},
		{in: math.NaN(), want: 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, ClampTemperature(tt.in))
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransportError(t *testing.T) {
	dialRefused := &url.Error{Op: "Post", URL: "http://localhost:11434/api/chat", Err: &net.OpError{
		Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}}
	dialTimeout := &url.Error{Op: "Post", URL: "http://10.0.0.1/api/chat", Err: &net.OpError{
		Op: "dial", Net: "tcp", Err: timeoutError{},
	}}
	readTimeout := &url.Error{Op: "Post", URL: "http://localhost:11434/api/chat", Err: timeoutError{}}
	plain := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "connection refused", err: dialRefused, want: ErrConnection},
		{name: "connect timeout is a connection error", err: dialTimeout, want: ErrConnection},
		{name: "client timeout", err: readTimeout, want: ErrTimeout},
		{name: "context deadline", err: fmt.Errorf("do: %w", context.DeadlineExceeded), want: ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyTransportError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	t.Run("other errors pass through", func(t *testing.T) {
		got := ClassifyTransportError(plain)
		assert.Same(t, plain, got)
		assert.NotErrorIs(t, got, ErrTimeout)
		assert.NotErrorIs(t, got, ErrConnection)
	})

	t.Run("already classified", func(t *testing.T) {
		err := fmt.Errorf("%w: slow", ErrTimeout)
		assert.Equal(t, err, ClassifyTransportError(err))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, ClassifyTransportError(nil))
	})
}
