package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceResult(t *testing.T) *Result {
	t.Helper()
	s := mustParse(t, `
name: trace
description: three packets
steps:
  - {op: group, as: g}
  - op: bundle
    steps:
      - {op: set, node: g, index: 0, value: 1}
      - {op: free, node: g}
  - {op: group}
assertions:
  - {type: packet_count, count: 3}
`)
	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	return result
}

func TestResult_Addresses(t *testing.T) {
	result := traceResult(t)

	assert.Equal(t, []string{"/group/new", "/node/set", "/node/free", "/group/new"}, result.Addresses())
	assert.Equal(t, []string{"/node/set", "/node/free"}, result.Trace[1].Addresses)
	assert.Equal(t, 2, result.Trace[1].Seq)
}

func TestEvaluateAssertions(t *testing.T) {
	result := traceResult(t)

	tests := []struct {
		name      string
		assertion Assertion
		pass      bool
	}{
		{"live nodes", Assertion{Type: AssertLiveNodes, Count: 1}, true},
		{"live nodes mismatch", Assertion{Type: AssertLiveNodes, Count: 0}, false},
		{"packet count", Assertion{Type: AssertPacketCount, Count: 3}, true},
		{"contains", Assertion{Type: AssertSentContains, Address: "/node/free"}, true},
		{"contains missing", Assertion{Type: AssertSentContains, Address: "/synth/new"}, false},
		{"count", Assertion{Type: AssertSentCount, Address: "/group/new", Count: 2}, true},
		{"count mismatch", Assertion{Type: AssertSentCount, Address: "/group/new", Count: 1}, false},
		{"order", Assertion{Type: AssertSentOrder, Addresses: []string{"/group/new", "/node/free", "/group/new"}}, true},
		{"order reversed", Assertion{Type: AssertSentOrder, Addresses: []string{"/node/free", "/node/set"}}, false},
		{"unknown", Assertion{Type: "vibes"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(result, []Assertion{tt.assertion})
			if tt.pass {
				assert.Empty(t, errs)
			} else {
				assert.Len(t, errs, 1)
			}
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	result := traceResult(t)

	errs := EvaluateAssertions(result, []Assertion{{Type: AssertSentContains, Address: "/synth/new"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Assertion failed: sent_contains")
	assert.Contains(t, errs[0], "Expected: a message to /synth/new")
	assert.Contains(t, errs[0], "[2] /node/set /node/free")
}

func TestResult_AddPacketRejectsMalformed(t *testing.T) {
	r := NewResult()
	err := r.AddPacket([]byte{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "packet 1")
	assert.Empty(t, r.Trace)
}
