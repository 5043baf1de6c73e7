package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"node", &NodeError{NodeID: "judge", Op: "execute", Err: cause}, "node judge: execute: cause"},
		{"panic", &PanicError{NodeID: "judge", Value: "bad"}, "node judge panicked: bad"},
		{"cancel", &CancellationError{NodeID: "judge", Cause: context.Canceled}, "cancelled before node judge: context canceled"},
		{"router", &RouterError{FromNode: "judge", Returned: "x", Err: cause}, `router from judge returned "x": cause`},
		{"max", &MaxIterationsError{Max: 3, LastNodeID: "judge"}, "exceeded maximum iterations (3) at node judge"},
		{"checkpoint", &CheckpointError{NodeID: "judge", Op: "save", Err: cause}, "checkpoint save at node judge: cause"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	assert.ErrorIs(t, &NodeError{Err: cause}, cause)
	assert.ErrorIs(t, &RouterError{Err: cause}, cause)
	assert.ErrorIs(t, &CheckpointError{Err: cause}, cause)
	assert.ErrorIs(t, &CancellationError{Cause: context.DeadlineExceeded}, context.DeadlineExceeded)
	assert.ErrorIs(t, &MaxIterationsError{}, ErrMaxIterations)
}

func TestFailedNode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&NodeError{NodeID: "a"}, "a"},
		{&PanicError{NodeID: "b"}, "b"},
		{&MaxIterationsError{LastNodeID: "c"}, "c"},
		{&CancellationError{NodeID: "d"}, "d"},
		{&RouterError{FromNode: "e"}, "e"},
		{fmt.Errorf("wrapped: %w", &NodeError{NodeID: "f"}), "f"},
		{errors.New("plain"), ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, failedNode(tt.err))
	}
}
