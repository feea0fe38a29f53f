package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/synthctl/internal/engine"
)

//go:embed schema.cue
var schemaCUE string

// Format is a configuration file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Config is the synthctl configuration.
type Config struct {
	PacketSize int      `yaml:"packet_size" toml:"packet_size" json:"packet_size"`
	NodeIDs    NodeIDs  `yaml:"node_ids" toml:"node_ids" json:"node_ids"`
	Driver     Driver   `yaml:"driver" toml:"driver" json:"driver"`
	Plugins    []string `yaml:"plugins" toml:"plugins" json:"plugins"`
	Log        Log      `yaml:"log" toml:"log" json:"log"`
	Record     Record   `yaml:"record" toml:"record" json:"record"`
}

// NodeIDs is the window node ids are allocated from.
type NodeIDs struct {
	Offset   int32 `yaml:"offset" toml:"offset" json:"offset"`
	Capacity int   `yaml:"capacity" toml:"capacity" json:"capacity"`
}

// Driver configures the audio driver.
type Driver struct {
	BufferSize int32 `yaml:"buffer_size" toml:"buffer_size" json:"buffer_size"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
}

// Record configures the packet journal. An empty Path disables recording.
type Record struct {
	Path string `yaml:"path" toml:"path" json:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		PacketSize: engine.DefaultPacketSize,
		NodeIDs: NodeIDs{
			Offset:   engine.DefaultNodeIDOffset,
			Capacity: engine.DefaultNodeIDs,
		},
		Driver: Driver{BufferSize: 256},
		Log:    Log{Level: "info", Format: "text"},
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	var format Format
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		format = FormatYAML
	case ".toml":
		format = FormatTOML
	default:
		return nil, fmt.Errorf("load config %s: unsupported extension %q", path, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("decode toml: unknown key %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks c against the schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.Join(details(err), "; "))
	}
	if int64(c.NodeIDs.Offset)+int64(c.NodeIDs.Capacity)-1 > math.MaxInt32 {
		return fmt.Errorf("invalid config: node_ids window exceeds int32")
	}
	return nil
}

func details(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		out = append(out, e.Error())
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

// SessionOptions converts c into session settings.
func (c *Config) SessionOptions() []engine.SessionOption {
	return []engine.SessionOption{
		engine.WithPacketSize(c.PacketSize),
		engine.WithNodeIDs(c.NodeIDs.Offset, c.NodeIDs.Capacity),
	}
}

// EngineOptions converts c into engine creation options.
func (c *Config) EngineOptions() []engine.Option {
	opts := []engine.Option{engine.DriverBufferSize(c.Driver.BufferSize)}
	for _, p := range c.Plugins {
		opts = append(opts, engine.PluginPath(p))
	}
	return opts
}
