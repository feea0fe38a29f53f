package osc

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthctl/internal/fault"
)

func build(t *testing.T, size int, fn func(w *Writer)) []byte {
	t.Helper()
	w := NewWriter(make([]byte, size))
	fn(w)
	require.True(t, w.Complete(), "packet not finished")
	return append([]byte(nil), w.Bytes()...)
}

func TestParse_Message(t *testing.T) {
	b := build(t, 128, func(w *Writer) {
		require.NoError(t, w.BeginMessage("/synth/new", 11))
		require.NoError(t, w.String("sampler"))
		require.NoError(t, w.Int32(2))
		require.NoError(t, w.Int32(1))
		require.NoError(t, w.Int32(0))
		require.NoError(t, w.BeginArray())
		require.NoError(t, w.Float32(0.5))
		require.NoError(t, w.EndArray())
		require.NoError(t, w.BeginArray())
		require.NoError(t, w.Int32(1))
		require.NoError(t, w.String("x.wav"))
		require.NoError(t, w.EndArray())
		require.NoError(t, w.EndMessage())
	})

	p, err := Parse(b)
	require.NoError(t, err)
	msg, ok := p.(*Message)
	require.True(t, ok)
	assert.Equal(t, "/synth/new", msg.Address)
	assert.Equal(t, "siii[f][is]", msg.Tags)
	assert.Equal(t, []any{
		"sampler", int32(2), int32(1), int32(0),
		[]any{float32(0.5)},
		[]any{int32(1), "x.wav"},
	}, msg.Args)
}

func TestParse_NestedBundleContainment(t *testing.T) {
	b := build(t, 256, func(w *Writer) {
		require.NoError(t, w.BeginBundle(TimeTag(2)))
		require.NoError(t, w.BeginBundle(TimeTag(3)))
		require.NoError(t, w.BeginMessage("/node/free", 1))
		require.NoError(t, w.Int32(7))
		require.NoError(t, w.EndMessage())
		require.NoError(t, w.EndBundle())
		require.NoError(t, w.BeginMessage("/synth/activate", 1))
		require.NoError(t, w.Int32(8))
		require.NoError(t, w.EndMessage())
		require.NoError(t, w.EndBundle())
	})

	p, err := Parse(b)
	require.NoError(t, err)
	outer, ok := p.(*Bundle)
	require.True(t, ok)
	assert.Equal(t, TimeTag(2), outer.TimeTag)
	require.Len(t, outer.Elements, 2)

	inner, ok := outer.Elements[0].(*Bundle)
	require.True(t, ok, "first element is the nested bundle")
	assert.Equal(t, TimeTag(3), inner.TimeTag)
	require.Len(t, inner.Elements, 1)
	assert.Equal(t, "/node/free", inner.Elements[0].(*Message).Address)

	after, ok := outer.Elements[1].(*Message)
	require.True(t, ok)
	assert.Equal(t, "/synth/activate", after.Address)
	assert.Equal(t, []any{int32(8)}, after.Args)
}

func TestParse_Blob(t *testing.T) {
	b, err := hex.DecodeString("2f656e67696e652f6f7074696f6e2f706c7567696e2d6c6962726172790000002c620000000000050102030405000000")
	require.NoError(t, err)

	p, err := Parse(b)
	require.NoError(t, err)
	msg := p.(*Message)
	assert.Equal(t, []any{[]byte{1, 2, 3, 4, 5}}, msg.Args)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"unaligned", []byte("/a\x00")},
		{"no address slash", []byte("abc\x00,\x00\x00\x00")},
		{"unterminated", []byte("/abc")},
		{"truncated int", []byte("/a\x00\x00,i\x00\x00")},
		{"bad element size", append([]byte("#bundle\x00\x00\x00\x00\x00\x00\x00\x00\x00"), 0, 0, 0, 64)},
		{"unbalanced array", []byte("/a\x00\x00,]\x00\x00")},
		{"unknown tag", []byte("/a\x00\x00,z\x00\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			require.Error(t, err)
			assert.True(t, fault.Is(err, fault.CodeArgument))
		})
	}
}

func TestFormat(t *testing.T) {
	b := build(t, 256, func(w *Writer) {
		require.NoError(t, w.BeginBundle(TimeTag(0.5)))
		require.NoError(t, w.BeginMessage("/synth/new", 8))
		require.NoError(t, w.String("patch-cable"))
		require.NoError(t, w.Int32(2))
		require.NoError(t, w.Int32(0))
		require.NoError(t, w.Int32(0))
		require.NoError(t, w.BeginArray())
		require.NoError(t, w.Float32(0.25))
		require.NoError(t, w.EndArray())
		require.NoError(t, w.Blob([]byte{0xAB}))
		require.NoError(t, w.EndMessage())
		require.NoError(t, w.EndBundle())
	})
	p, err := Parse(b)
	require.NoError(t, err)

	want := strings.Join([]string{
		"#bundle @0.5",
		`  /synth/new ,siii[f]b "patch-cable" 2 0 0 [0.25] #ab`,
		"",
	}, "\n")
	assert.Equal(t, want, Format(p))
}

func TestIsBundle(t *testing.T) {
	assert.True(t, IsBundle([]byte("#bundle\x00rest")))
	assert.False(t, IsBundle([]byte("/node/free")))
	assert.False(t, IsBundle(nil))
}
