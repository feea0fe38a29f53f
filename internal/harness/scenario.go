package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/synthctl/internal/config"
	"github.com/roach88/synthctl/internal/fault"
)

// Scenario is a scripted session.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Config overrides the session settings of config.Default. Only the
	// session fields (packet_size, node_ids) affect the run.
	Config yaml.Node `yaml:"config,omitempty"`

	// Steps run in order against one session.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one session operation.
type Step struct {
	// Op selects the operation, one of the Op constants.
	Op string `yaml:"op"`

	// As binds the node a group or synth step creates to a name.
	As string `yaml:"as,omitempty"`

	// Parent is the group a group or synth is created in. Default: root.
	Parent string `yaml:"parent,omitempty"`

	// Node is the target of activate, map, set and free.
	Node string `yaml:"node,omitempty"`

	Def      string    `yaml:"def,omitempty"`
	Controls []float32 `yaml:"controls,omitempty"`
	// Options are synth options: integers, floats, strings or booleans.
	Options []any `yaml:"options,omitempty"`

	// Index is the port of a map step or the control of a set step.
	Index int   `yaml:"index,omitempty"`
	Bus   int32 `yaml:"bus,omitempty"`
	// Flags combine internal, external, feedback and replace.
	Flags []string `yaml:"flags,omitempty"`
	Value float32  `yaml:"value,omitempty"`

	// Time schedules a bundle in engine seconds. Default: immediately.
	Time *float64 `yaml:"time,omitempty"`
	// Steps are the contents of a bundle.
	Steps []Step `yaml:"steps,omitempty"`

	// Message is the engine error a fail_send step injects into every
	// following send. An empty message clears it.
	Message string `yaml:"message,omitempty"`

	// Seconds is how far an advance step moves the engine clock.
	Seconds float64 `yaml:"seconds,omitempty"`

	// ExpectError is the error code this step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	OpGroup     = "group"
	OpSynth     = "synth"
	OpActivate  = "activate"
	OpMapInput  = "map_input"
	OpMapOutput = "map_output"
	OpSet       = "set"
	OpFree      = "free"
	OpBundle    = "bundle"
	OpFailSend  = "fail_send"
	OpAdvance   = "advance"
)

// Assertion checks the trace or the session after the run.
type Assertion struct {
	// Type is one of the Assert constants:
	//   - "live_nodes": Count node ids are allocated
	//   - "packet_count": Count packets were sent
	//   - "sent_contains": a message to Address was sent
	//   - "sent_count": exactly Count messages to Address were sent
	//   - "sent_order": Addresses were sent in this order, not necessarily
	//     adjacent
	Type string `yaml:"type"`

	Address   string   `yaml:"address,omitempty"`
	Addresses []string `yaml:"addresses,omitempty"`
	Count     int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertLiveNodes    = "live_nodes"
	AssertPacketCount  = "packet_count"
	AssertSentContains = "sent_contains"
	AssertSentCount    = "sent_count"
	AssertSentOrder    = "sent_order"
)

var errorCodes = map[string]bool{
	string(fault.CodeArgument):          true,
	string(fault.CodeLogic):             true,
	string(fault.CodeMemory):            true,
	string(fault.CodeResourceExhausted): true,
	string(fault.CodeInvalidIdentifier): true,
	string(fault.CodePacketOverflow):    true,
	string(fault.CodeEngine):            true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// SessionConfig returns config.Default with the scenario's overrides
// applied and validated.
func (s *Scenario) SessionConfig() (*config.Config, error) {
	if s.Config.Kind == 0 {
		return config.Default(), nil
	}
	data, err := yaml.Marshal(&s.Config)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := config.Parse(data, config.FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if _, err := s.SessionConfig(); err != nil {
		return err
	}
	if err := validateSteps("steps", s.Steps); err != nil {
		return err
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateSteps(path string, steps []Step) error {
	for i, st := range steps {
		where := fmt.Sprintf("%s[%d]", path, i)
		if err := validateStep(where, &st); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, st *Step) error {
	if st.ExpectError != "" && !errorCodes[st.ExpectError] {
		return fmt.Errorf("%s: unknown error code %q", where, st.ExpectError)
	}
	switch st.Op {
	case "":
		return fmt.Errorf("%s: op is required", where)
	case OpGroup:
	case OpSynth:
		if _, err := synthOptions(st.Options); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	case OpActivate, OpSet, OpFree:
		if st.Node == "" {
			return fmt.Errorf("%s: %s requires node", where, st.Op)
		}
	case OpMapInput, OpMapOutput:
		if st.Node == "" {
			return fmt.Errorf("%s: %s requires node", where, st.Op)
		}
		if _, err := busMapping(st.Flags); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	case OpBundle:
		return validateSteps(where+".steps", st.Steps)
	case OpFailSend, OpAdvance:
	default:
		return fmt.Errorf("%s: unknown op %q", where, st.Op)
	}
	if st.As != "" && st.Op != OpGroup && st.Op != OpSynth {
		return fmt.Errorf("%s: only group and synth steps bind names", where)
	}
	if len(st.Steps) > 0 {
		return fmt.Errorf("%s: only bundle steps have steps", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertLiveNodes, AssertPacketCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertSentContains, AssertSentCount:
		if a.Address == "" {
			return fmt.Errorf("assertions[%d]: %s requires address", index, a.Type)
		}
	case AssertSentOrder:
		if len(a.Addresses) < 2 {
			return fmt.Errorf("assertions[%d]: sent_order requires at least 2 addresses", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
