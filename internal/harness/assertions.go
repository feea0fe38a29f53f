package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, strings.Join(event.Addresses, " "))
		}
	}
	return buf.String()
}

func assertLiveNodes(result *Result, a Assertion) error {
	if result.LiveNodes != a.Count {
		return &AssertionError{
			Type:     AssertLiveNodes,
			Expected: fmt.Sprintf("%d live nodes", a.Count),
			Actual:   fmt.Sprintf("%d live nodes", result.LiveNodes),
		}
	}
	return nil
}

func assertPacketCount(result *Result, a Assertion) error {
	if len(result.Trace) != a.Count {
		return &AssertionError{
			Type:     AssertPacketCount,
			Expected: fmt.Sprintf("%d packets", a.Count),
			Actual:   fmt.Sprintf("%d packets", len(result.Trace)),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertSentContains(result *Result, a Assertion) error {
	if slices.Contains(result.Addresses(), a.Address) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSentContains,
		Expected: fmt.Sprintf("a message to %s", a.Address),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

func assertSentCount(result *Result, a Assertion) error {
	count := 0
	for _, addr := range result.Addresses() {
		if addr == a.Address {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertSentCount,
			Expected: fmt.Sprintf("%d messages to %s", a.Count, a.Address),
			Actual:   fmt.Sprintf("%d messages", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSentOrder checks that the addresses appear in order. They need not
// be adjacent, and each match must come after the previous one.
func assertSentOrder(result *Result, a Assertion) error {
	sent := result.Addresses()
	pos := 0
	for _, want := range a.Addresses {
		i := slices.Index(sent[pos:], want)
		if i < 0 {
			return &AssertionError{
				Type:     AssertSentOrder,
				Expected: fmt.Sprintf("messages in order: %v", a.Addresses),
				Actual:   fmt.Sprintf("no %s after position %d", want, pos),
				Trace:    result.Trace,
			}
		}
		pos += i + 1
	}
	return nil
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertLiveNodes:
			err = assertLiveNodes(result, a)
		case AssertPacketCount:
			err = assertPacketCount(result, a)
		case AssertSentContains:
			err = assertSentContains(result, a)
		case AssertSentCount:
			err = assertSentCount(result, a)
		case AssertSentOrder:
			err = assertSentOrder(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
