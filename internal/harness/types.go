package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/synthctl/internal/osc"
)

// TraceEvent is one packet the session sent.
type TraceEvent struct {
	Seq int `json:"seq"`
	// Addresses lists the messages of the packet depth first.
	Addresses []string `json:"addresses"`
	Text      string   `json:"text"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step behaved as expected and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains the sent packets in send order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// LiveNodes is the number of node ids allocated when the run ended.
	LiveNodes int `json:"live_nodes"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddPacket decodes packet and appends it to the trace.
func (r *Result) AddPacket(packet []byte) error {
	p, err := osc.Parse(packet)
	if err != nil {
		return fmt.Errorf("packet %d: %w", len(r.Trace)+1, err)
	}
	r.Trace = append(r.Trace, TraceEvent{
		Seq:       len(r.Trace) + 1,
		Addresses: addresses(p, nil),
		Text:      osc.Format(p),
	})
	return nil
}

// Addresses returns the message addresses of the whole trace in order.
func (r *Result) Addresses() []string {
	var out []string
	for _, e := range r.Trace {
		out = append(out, e.Addresses...)
	}
	return out
}

// Transcript renders the trace for golden comparison.
func (r *Result) Transcript() string {
	var b strings.Builder
	for _, e := range r.Trace {
		fmt.Fprintf(&b, "#%d\n%s", e.Seq, e.Text)
	}
	return b.String()
}

func addresses(p osc.Packet, out []string) []string {
	switch v := p.(type) {
	case *osc.Message:
		out = append(out, v.Address)
	case *osc.Bundle:
		for _, el := range v.Elements {
			out = addresses(el, out)
		}
	}
	return out
}
