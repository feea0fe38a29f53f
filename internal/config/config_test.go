package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/synthctl/internal/engine"
	"github.com/roach88/synthctl/internal/loopback"
	"github.com/roach88/synthctl/internal/osc"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8192, cfg.PacketSize)
	assert.Equal(t, NodeIDs{Offset: 1, Capacity: 1023}, cfg.NodeIDs)
	assert.Equal(t, int32(256), cfg.Driver.BufferSize)
	assert.Equal(t, Log{Level: "info", Format: "text"}, cfg.Log)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "synth.yaml", `
packet_size: 4096
node_ids:
  offset: 1000
  capacity: 64
driver:
  buffer_size: 128
plugins:
  - /usr/lib/synth/plugins
log:
  level: debug
record:
  path: session.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, &Config{
		PacketSize: 4096,
		NodeIDs:    NodeIDs{Offset: 1000, Capacity: 64},
		Driver:     Driver{BufferSize: 128},
		Plugins:    []string{"/usr/lib/synth/plugins"},
		Log:        Log{Level: "debug", Format: "text"},
		Record:     Record{Path: "session.db"},
	}, cfg)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "synth.toml", `
packet_size = 2048
plugins = ["a", "b"]

[node_ids]
offset = 10
capacity = 20

[log]
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.PacketSize)
	assert.Equal(t, NodeIDs{Offset: 10, Capacity: 20}, cfg.NodeIDs)
	assert.Equal(t, []string{"a", "b"}, cfg.Plugins)
	assert.Equal(t, Log{Level: "info", Format: "json"}, cfg.Log)
	assert.Equal(t, int32(256), cfg.Driver.BufferSize, "default kept")
}

func TestLoad_EmptyYAMLKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unsupported extension", "synth.json", `{}`, "unsupported extension"},
		{"unknown yaml key", "synth.yaml", "packet_sise: 10\n", "decode yaml"},
		{"unknown toml key", "synth.toml", "colour = 1\n", "unknown key"},
		{"malformed toml", "synth.toml", "packet_size = \n", "decode toml"},
		{"packet too small", "synth.yaml", "packet_size: 10\n", "invalid config"},
		{"bad log level", "synth.yaml", "log:\n  level: loud\n", "invalid config"},
		{"bad log format", "synth.toml", "[log]\nformat = \"xml\"\n", "invalid config"},
		{"offset on root", "synth.yaml", "node_ids:\n  offset: 0\n", "invalid config"},
		{"empty plugin", "synth.yaml", "plugins: [\"\"]\n", "invalid config"},
		{"window overflows", "synth.yaml", "node_ids:\n  offset: 2147483000\n  capacity: 1000\n", "exceeds int32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse(nil, Format("ini"))
	assert.Error(t, err)
}

func TestOptions_OpenSession(t *testing.T) {
	cfg := Default()
	cfg.NodeIDs = NodeIDs{Offset: 500, Capacity: 4}
	cfg.Plugins = []string{"/opt/plugins"}

	d := loopback.NewDriver()
	opts := append(cfg.SessionOptions(), engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s, err := engine.Open(d, cfg.EngineOptions(), opts...)
	require.NoError(t, err)
	defer s.Close()

	p, err := osc.Parse(d.Engine().Options())
	require.NoError(t, err)
	assert.Equal(t, "#bundle now\n"+
		"  /engine/option/driver/buffer-size ,i 256\n"+
		"  /engine/option/plugin-path ,s \"/opt/plugins\"\n", osc.Format(p))

	g, err := s.Group(s.Root())
	require.NoError(t, err)
	assert.Equal(t, int32(500), g.ID())
}
