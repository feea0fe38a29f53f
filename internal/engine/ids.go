package engine

import "fmt"

// NodeKind tags the role of a NodeID.
type NodeKind uint8

const (
	// KindInvalid marks the zero NodeID.
	KindInvalid NodeKind = iota
	// KindNode is a node of unknown role.
	KindNode
	// KindGroup is a node that contains other nodes.
	KindGroup
	// KindSynth is a running synthesis definition instance.
	KindSynth
)

func (k NodeKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindGroup:
		return "group"
	case KindSynth:
		return "synth"
	default:
		return "invalid"
	}
}

// Node is implemented by every node identifier type.
type Node interface {
	Node() NodeID
}

// NodeID identifies a node in the synthesis graph.
//
// The zero value is invalid. Two NodeIDs are equal only if both the number
// and the kind match, so a group and a synth never compare equal.
type NodeID struct {
	id   int32
	kind NodeKind
}

// NewNodeID wraps a raw engine id with unknown role.
func NewNodeID(id int32) NodeID {
	return NodeID{id: id, kind: KindNode}
}

// ID returns the raw engine id.
func (n NodeID) ID() int32 { return n.id }

// Kind returns the node role.
func (n NodeID) Kind() NodeKind { return n.kind }

// Valid reports whether n is not the zero sentinel.
func (n NodeID) Valid() bool { return n.kind != KindInvalid }

// Node implements Node.
func (n NodeID) Node() NodeID { return n }

func (n NodeID) String() string {
	if !n.Valid() {
		return "node(invalid)"
	}
	return fmt.Sprintf("%s(%d)", n.kind, n.id)
}

// GroupID identifies a group node. The zero value is invalid.
type GroupID struct {
	n NodeID
}

// NewGroupID wraps a raw engine id known to be a group.
func NewGroupID(id int32) GroupID {
	return GroupID{n: NodeID{id: id, kind: KindGroup}}
}

// Root returns the well-known root group.
func Root() GroupID {
	return NewGroupID(0)
}

// ID returns the raw engine id.
func (g GroupID) ID() int32 { return g.n.id }

// Valid reports whether g is not the zero sentinel.
func (g GroupID) Valid() bool { return g.n.Valid() }

// Node implements Node.
func (g GroupID) Node() NodeID { return g.n }

func (g GroupID) String() string { return g.n.String() }

// SynthID identifies a synth node. The zero value is invalid.
type SynthID struct {
	n NodeID
}

// NewSynthID wraps a raw engine id known to be a synth.
func NewSynthID(id int32) SynthID {
	return SynthID{n: NodeID{id: id, kind: KindSynth}}
}

// ID returns the raw engine id.
func (s SynthID) ID() int32 { return s.n.id }

// Valid reports whether s is not the zero sentinel.
func (s SynthID) Valid() bool { return s.n.Valid() }

// Node implements Node.
func (s SynthID) Node() NodeID { return s.n }

func (s SynthID) String() string { return s.n.String() }

// AudioBusID identifies an audio bus. Buses live in their own namespace and
// are not nodes. The zero value is invalid; use NewAudioBusID(0) for bus 0.
type AudioBusID struct {
	id    int32
	valid bool
}

// NewAudioBusID wraps a raw bus index.
func NewAudioBusID(id int32) AudioBusID {
	return AudioBusID{id: id, valid: true}
}

// ID returns the raw bus index.
func (b AudioBusID) ID() int32 { return b.id }

// Valid reports whether b is not the zero sentinel.
func (b AudioBusID) Valid() bool { return b.valid }

func (b AudioBusID) String() string {
	if !b.valid {
		return "bus(invalid)"
	}
	return fmt.Sprintf("bus(%d)", b.id)
}

// BusMapping controls how a synth port connects to a bus.
type BusMapping int32

const (
	// BusMappingInternal maps to an engine-internal bus.
	BusMappingInternal BusMapping = 0x00
	// BusMappingExternal maps to a hardware bus.
	BusMappingExternal BusMapping = 0x01
	// BusMappingFeedback reads the bus value of the previous block.
	BusMappingFeedback BusMapping = 0x02
	// BusMappingReplace overwrites the bus instead of mixing into it.
	BusMappingReplace BusMapping = 0x04
)
