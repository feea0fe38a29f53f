package engine_test

import (
	"encoding/hex"
	"io"
	"log/slog"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthctl/internal/engine"
	"github.com/roach88/synthctl/internal/loopback"
	"github.com/roach88/synthctl/internal/osc"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openSession opens a session on a fresh loopback engine.
func openSession(t *testing.T, opts ...engine.SessionOption) (*engine.Session, *loopback.Engine) {
	t.Helper()
	d := loopback.NewDriver()
	opts = append([]engine.SessionOption{
		engine.WithLogger(quietLogger()),
		engine.WithSessionID("test-session"),
	}, opts...)
	s, err := engine.Open(d, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, d.Engine()
}

// decode renders a packet in the osc text form.
func decode(t *testing.T, b []byte) string {
	t.Helper()
	p, err := osc.Parse(b)
	require.NoError(t, err)
	return osc.Format(p)
}

// sent renders every packet the engine received.
func sent(t *testing.T, e *loopback.Engine) []string {
	t.Helper()
	var out []string
	for _, p := range e.Packets() {
		out = append(out, decode(t, p))
	}
	return out
}

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func hexOf(b []byte) []byte {
	return []byte(hex.EncodeToString(b) + "\n")
}
