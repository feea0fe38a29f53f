package engine

import (
	"encoding/binary"
	"unsafe"

	"github.com/roach88/synthctl/internal/osc"
)

// Engine option addresses.
const (
	AddrOptionDriverBufferSize = "/engine/option/driver/buffer-size"
	AddrOptionPluginLibrary    = "/engine/option/plugin-library"
	AddrOptionPluginPath       = "/engine/option/plugin-path"
)

// Option configures the engine at creation time. Options are serialized as
// messages inside one bundle handed to Driver.Open.
type Option interface {
	put(w *osc.Writer) error
}

type valueOption struct {
	key   string
	value Value
}

func (o valueOption) put(w *osc.Writer) error {
	if err := w.BeginMessage(o.key, 1); err != nil {
		return err
	}
	if err := o.value.put(w); err != nil {
		return err
	}
	return w.EndMessage()
}

type blobOption struct {
	key  string
	data []byte
}

func (o blobOption) put(w *osc.Writer) error {
	if err := w.BeginMessage(o.key, 1); err != nil {
		return err
	}
	if err := w.Blob(o.data); err != nil {
		return err
	}
	return w.EndMessage()
}

// ValueOption sends key with a single typed argument.
func ValueOption(key string, v Value) Option {
	return valueOption{key: key, value: v}
}

// BlobOption sends key with an opaque blob argument.
func BlobOption(key string, data []byte) Option {
	return blobOption{key: key, data: append([]byte(nil), data...)}
}

// DriverBufferSize sets the audio driver block size in frames.
func DriverBufferSize(frames int32) Option {
	return ValueOption(AddrOptionDriverBufferSize, Int(frames))
}

// PluginLibrary passes the address of a plugin library entry point. The
// value travels as a pointer-sized blob in host byte order, which is what an
// in-process engine reads back.
func PluginLibrary(entry uintptr) Option {
	data := make([]byte, unsafe.Sizeof(entry))
	if unsafe.Sizeof(entry) == 8 {
		binary.NativeEndian.PutUint64(data, uint64(entry))
	} else {
		binary.NativeEndian.PutUint32(data, uint32(entry))
	}
	return blobOption{key: AddrOptionPluginLibrary, data: data}
}

// PluginPath asks the engine to load plugins from a directory or file.
func PluginPath(path string) Option {
	return ValueOption(AddrOptionPluginPath, String(path))
}

// encodeOptions writes opts as one bundle at time zero.
func encodeOptions(w *osc.Writer, opts []Option) error {
	if err := w.BeginBundle(osc.Immediately); err != nil {
		return err
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.put(w); err != nil {
			return err
		}
	}
	return w.EndBundle()
}
