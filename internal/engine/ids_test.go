package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/synthctl/internal/engine"
)

func TestIDs_ZeroValuesInvalid(t *testing.T) {
	assert.False(t, engine.NodeID{}.Valid())
	assert.False(t, engine.GroupID{}.Valid())
	assert.False(t, engine.SynthID{}.Valid())
	assert.False(t, engine.AudioBusID{}.Valid())

	assert.True(t, engine.Root().Valid())
	assert.Equal(t, int32(0), engine.Root().ID())
	assert.True(t, engine.NewAudioBusID(0).Valid())
}

func TestIDs_KindsNeverCompareEqual(t *testing.T) {
	g := engine.NewGroupID(5)
	s := engine.NewSynthID(5)

	assert.NotEqual(t, g.Node(), s.Node())
	assert.Equal(t, int32(5), g.Node().ID())
	assert.Equal(t, engine.NewGroupID(5), g)
	assert.NotEqual(t, engine.NewNodeID(5), g.Node())
}

func TestIDs_String(t *testing.T) {
	assert.Equal(t, "group(0)", engine.Root().String())
	assert.Equal(t, "synth(3)", engine.NewSynthID(3).String())
	assert.Equal(t, "node(7)", engine.NewNodeID(7).String())
	assert.Equal(t, "node(invalid)", engine.SynthID{}.String())
	assert.Equal(t, "bus(2)", engine.NewAudioBusID(2).String())
	assert.Equal(t, "bus(invalid)", engine.AudioBusID{}.String())
}

func TestValue_Constructors(t *testing.T) {
	assert.Equal(t, engine.ValueInt, engine.Int(3).Type())
	assert.Equal(t, engine.ValueFloat, engine.Float(1.5).Type())
	assert.Equal(t, engine.ValueString, engine.String("x").Type())
	assert.Equal(t, engine.Int(1), engine.Bool(true))
	assert.Equal(t, engine.Int(0), engine.Bool(false))

	assert.Equal(t, "3", engine.Int(3).String())
	assert.Equal(t, "1.5", engine.Float(1.5).String())
	assert.Equal(t, `"x"`, engine.String("x").String())
	assert.Equal(t, "<invalid>", engine.Value{}.String())
}
