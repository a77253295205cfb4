package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"marked", MarkTransient(errBoom, 503), true},
		{"wrapped marked", fmt.Errorf("call: %w", MarkTransient(errBoom, 429)), true},
		{"conn reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"deadline", context.DeadlineExceeded, true},
		{"text", errors.New("read tcp: i/o timeout"), true},
		{"eof", errors.New("Post \"x\": unexpected EOF"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestTransientStatus(t *testing.T) {
	for _, s := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, TransientStatus(s), s)
	}
	for _, s := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, TransientStatus(s), s)
	}
}

func TestFromStatus(t *testing.T) {
	assert.True(t, IsTransient(FromStatus(errBoom, 502)))
	assert.Same(t, errBoom, FromStatus(errBoom, 400))
	assert.NoError(t, MarkTransient(nil, 500))
}

func TestTransientError_Unwrap(t *testing.T) {
	err := MarkTransient(errBoom, 500)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "boom", err.Error())

	var te *TransientError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 500, te.Status)
}
