package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/synthctl/internal/engine"
	"github.com/roach88/synthctl/internal/fault"
	"github.com/roach88/synthctl/internal/loopback"
)

// StepError reports a step that did not behave as its scenario expects.
type StepError struct {
	Path string // e.g. "steps[3].steps[0]"
	Op   string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Path, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// commands is the command surface shared by a session and a bundle.
type commands interface {
	Group(parent engine.GroupID) (engine.GroupID, error)
	Synth(def string, parent engine.GroupID, controls []float32, options []engine.Value) (engine.SynthID, error)
	Activate(synth engine.SynthID) error
	MapInput(synth engine.SynthID, index int, bus engine.AudioBusID, flags engine.BusMapping) error
	MapOutput(synth engine.SynthID, index int, bus engine.AudioBusID, flags engine.BusMapping) error
	Set(node engine.Node, index int, value float32) error
	Free(node engine.Node) error
	Bundle(t engine.Time, fn func(*engine.Bundle) error) error
}

var (
	_ commands = (*engine.Session)(nil)
	_ commands = (*engine.Bundle)(nil)
)

// Harness executes one scenario against one session.
type Harness struct {
	session *engine.Session
	engine  *loopback.Engine
	nodes   map[string]engine.Node
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh loopback engine with a fixed session id.
// A step that does not behave as expected is reported in the result and
// ends the run; assertions are only evaluated after a complete run. The
// returned error is reserved for failures of the harness itself.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := scenario.SessionConfig()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := append(cfg.SessionOptions(),
		engine.WithLogger(logger),
		engine.WithSessionID("scenario-"+scenario.Name))

	d := loopback.NewDriver()
	s, err := engine.Open(d, cfg.EngineOptions(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer s.Close()

	h := &Harness{
		session: s,
		engine:  d.Engine(),
		nodes:   map[string]engine.Node{},
		logger:  logger,
	}

	result := NewResult()
	runErr := h.steps(s, "steps", scenario.Steps)

	for _, p := range h.engine.Packets() {
		if err := result.AddPacket(p); err != nil {
			return nil, fmt.Errorf("failed to decode sent packet: %w", err)
		}
	}
	result.LiveNodes = s.Stats().LiveNodes

	if runErr != nil {
		result.AddError(runErr.Error())
		return result, nil
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) steps(c commands, path string, steps []Step) error {
	for i, st := range steps {
		where := fmt.Sprintf("%s[%d]", path, i)

		err := h.step(c, where, &st)
		var se *StepError
		if errors.As(err, &se) {
			return err
		}
		if err := expect(st.ExpectError, err); err != nil {
			return &StepError{Path: where, Op: st.Op, Err: err}
		}
		h.logger.Debug("step completed", "step", where, "op", st.Op)
	}
	return nil
}

// expect compares the outcome of a step with the error code it expects.
func expect(code string, err error) error {
	switch {
	case code == "" && err != nil:
		return err
	case code == "":
		return nil
	case err == nil:
		return fmt.Errorf("expected %s, step succeeded", code)
	case string(fault.CodeOf(err)) != code:
		return fmt.Errorf("expected %s, got %w", code, err)
	}
	return nil
}

func (h *Harness) step(c commands, where string, st *Step) error {
	// Reference errors belong to the scenario, not to the engine.
	refErr := func(err error) error {
		return &StepError{Path: where, Op: st.Op, Err: err}
	}

	switch st.Op {
	case OpGroup:
		parent, err := h.group(st.Parent)
		if err != nil {
			return refErr(err)
		}
		g, err := c.Group(parent)
		if err == nil {
			h.bind(st.As, g)
		}
		return err

	case OpSynth:
		parent, err := h.group(st.Parent)
		if err != nil {
			return refErr(err)
		}
		options, err := synthOptions(st.Options)
		if err != nil {
			return refErr(err)
		}
		id, err := c.Synth(st.Def, parent, st.Controls, options)
		if err == nil {
			h.bind(st.As, id)
		}
		return err

	case OpActivate:
		synth, err := h.synth(st.Node)
		if err != nil {
			return refErr(err)
		}
		return c.Activate(synth)

	case OpMapInput, OpMapOutput:
		synth, err := h.synth(st.Node)
		if err != nil {
			return refErr(err)
		}
		flags, err := busMapping(st.Flags)
		if err != nil {
			return refErr(err)
		}
		bus := engine.NewAudioBusID(st.Bus)
		if st.Op == OpMapInput {
			return c.MapInput(synth, st.Index, bus, flags)
		}
		return c.MapOutput(synth, st.Index, bus, flags)

	case OpSet:
		node, err := h.node(st.Node)
		if err != nil {
			return refErr(err)
		}
		return c.Set(node, st.Index, st.Value)

	case OpFree:
		node, err := h.node(st.Node)
		if err != nil {
			return refErr(err)
		}
		return c.Free(node)

	case OpBundle:
		t := engine.Immediately
		if st.Time != nil {
			t = engine.Time(*st.Time)
		}
		return c.Bundle(t, func(b *engine.Bundle) error {
			return h.steps(b, where+".steps", st.Steps)
		})

	case OpFailSend:
		if st.Message == "" {
			h.engine.FailSend(nil)
		} else {
			h.engine.FailSend(errors.New(st.Message))
		}
		return nil

	case OpAdvance:
		h.engine.Advance(engine.Time(st.Seconds))
		return nil
	}
	return refErr(fmt.Errorf("unknown op %q", st.Op))
}

func (h *Harness) bind(name string, n engine.Node) {
	if name != "" {
		h.nodes[name] = n
	}
}

// node resolves a reference: a bound name, "root" or "#<id>".
func (h *Harness) node(ref string) (engine.Node, error) {
	switch {
	case ref == "root":
		return engine.Root(), nil
	case strings.HasPrefix(ref, "#"):
		id, err := rawID(ref)
		if err != nil {
			return nil, err
		}
		return engine.NewNodeID(id), nil
	}
	n, ok := h.nodes[ref]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", ref)
	}
	return n, nil
}

func (h *Harness) group(ref string) (engine.GroupID, error) {
	if ref == "" {
		return engine.Root(), nil
	}
	if strings.HasPrefix(ref, "#") {
		id, err := rawID(ref)
		if err != nil {
			return engine.GroupID{}, err
		}
		return engine.NewGroupID(id), nil
	}
	n, err := h.node(ref)
	if err != nil {
		return engine.GroupID{}, err
	}
	g, ok := n.(engine.GroupID)
	if !ok {
		return engine.GroupID{}, fmt.Errorf("node %q is not a group", ref)
	}
	return g, nil
}

func (h *Harness) synth(ref string) (engine.SynthID, error) {
	if strings.HasPrefix(ref, "#") {
		id, err := rawID(ref)
		if err != nil {
			return engine.SynthID{}, err
		}
		return engine.NewSynthID(id), nil
	}
	n, err := h.node(ref)
	if err != nil {
		return engine.SynthID{}, err
	}
	s, ok := n.(engine.SynthID)
	if !ok {
		return engine.SynthID{}, fmt.Errorf("node %q is not a synth", ref)
	}
	return s, nil
}

func rawID(ref string) (int32, error) {
	id, err := strconv.ParseInt(ref[1:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid raw id %q", ref)
	}
	return int32(id), nil
}

// synthOptions converts YAML-parsed option values to engine values.
func synthOptions(values []any) ([]engine.Value, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]engine.Value, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case int:
			if v < math.MinInt32 || v > math.MaxInt32 {
				return nil, fmt.Errorf("options[%d]: %d overflows int32", i, v)
			}
			out[i] = engine.Int(int32(v))
		case float64:
			out[i] = engine.Float(float32(v))
		case string:
			out[i] = engine.String(v)
		case bool:
			out[i] = engine.Bool(v)
		default:
			return nil, fmt.Errorf("options[%d]: unsupported type %T", i, v)
		}
	}
	return out, nil
}

func busMapping(flags []string) (engine.BusMapping, error) {
	var m engine.BusMapping
	for _, f := range flags {
		switch f {
		case "internal":
			m |= engine.BusMappingInternal
		case "external":
			m |= engine.BusMappingExternal
		case "feedback":
			m |= engine.BusMappingFeedback
		case "replace":
			m |= engine.BusMappingReplace
		default:
			return 0, fmt.Errorf("unknown bus flag %q", f)
		}
	}
	return m, nil
}
