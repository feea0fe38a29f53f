package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MatchesSentinelByCode(t *testing.T) {
	err := New(CodePacketOverflow, "osc.int32", "need 4 bytes, have 2")

	assert.True(t, errors.Is(err, ErrPacketOverflow))
	assert.False(t, errors.Is(err, ErrLogic))
}

func TestError_MatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("build group: %w", Misuse("send", "nested bundle"))

	assert.True(t, errors.Is(err, ErrLogic))
	assert.True(t, Is(err, CodeLogic))
	assert.Equal(t, CodeLogic, CodeOf(err))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"op and message", New(CodeArgument, "/node/set", "bad index"), "ARGUMENT_ERROR: /node/set: bad index"},
		{"no op", New(CodeEngine, "", "driver gone"), "ENGINE_ERROR: driver gone"},
		{"cause only", Wrap(CodeMemory, "start", errors.New("oom")), "MEMORY_ERROR: start: oom"},
		{"message and cause", &Error{Code: CodeEngine, Message: "send", Err: errors.New("closed")}, "ENGINE_ERROR: send: closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CodeEngine, "stop", cause)

	assert.ErrorIs(t, err, cause)
}

func TestCodeOf_Uncategorized(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.False(t, Is(nil, CodeLogic))
}
