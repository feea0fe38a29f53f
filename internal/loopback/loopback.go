package loopback

import (
	"slices"
	"sync"

	"github.com/roach88/synthctl/internal/engine"
)

// Driver opens loopback engines.
//
// Thread-safety: Driver is safe for concurrent use.
type Driver struct {
	mu      sync.Mutex
	openErr error
	engines []*Engine
}

// NewDriver creates a driver.
func NewDriver() *Driver {
	return &Driver{}
}

// FailOpen makes the next Open calls return err. Pass nil to clear.
func (d *Driver) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// Open implements engine.Driver.
func (d *Driver) Open(h engine.PacketHandler, options []byte) (engine.Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.openErr != nil {
		return nil, d.openErr
	}
	e := &Engine{handler: h, options: slices.Clone(options)}
	d.engines = append(d.engines, e)
	return e, nil
}

// Engine returns the most recently opened engine, or nil.
func (d *Driver) Engine() *Engine {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.engines) == 0 {
		return nil
	}
	return d.engines[len(d.engines)-1]
}

// Engine is one loopback engine instance.
//
// Thread-safety: Engine is safe for concurrent use. Deliver calls the
// session handler without holding the engine lock.
type Engine struct {
	mu       sync.Mutex
	handler  engine.PacketHandler
	options  []byte
	packets  [][]byte
	now      engine.Time
	running  bool
	closed   bool
	sendErr  error
	startErr error
}

func errClosed() error {
	return &engine.BackendError{Code: engine.BackendLogic, Message: "engine closed"}
}

// Start implements engine.Backend.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.closed:
		return errClosed()
	case e.startErr != nil:
		return e.startErr
	}
	e.running = true
	return nil
}

// Stop implements engine.Backend.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errClosed()
	}
	e.running = false
	return nil
}

// Send implements engine.Backend. The packet is copied.
func (e *Engine) Send(packet []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.closed:
		return errClosed()
	case e.sendErr != nil:
		return e.sendErr
	}
	e.packets = append(e.packets, slices.Clone(packet))
	return nil
}

// CurrentTime implements engine.Backend.
func (e *Engine) CurrentTime() engine.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// Close implements engine.Backend. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.running = false
	return nil
}

// Advance moves the engine clock forward by d seconds.
func (e *Engine) Advance(d engine.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now += d
}

// FailSend makes Send return err until cleared with nil.
func (e *Engine) FailSend(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sendErr = err
}

// FailStart makes Start return err until cleared with nil.
func (e *Engine) FailStart(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startErr = err
}

// Running reports whether the engine is started.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Options returns the option bundle passed to Open.
func (e *Engine) Options() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.options)
}

// Packets returns copies of every packet sent so far, in order.
func (e *Engine) Packets() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]byte, len(e.packets))
	for i, p := range e.packets {
		out[i] = slices.Clone(p)
	}
	return out
}

// Last returns the most recent packet, or nil.
func (e *Engine) Last() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.packets) == 0 {
		return nil
	}
	return slices.Clone(e.packets[len(e.packets)-1])
}

// Deliver pushes packet to the session as if the engine had emitted it
// under id, and returns the handler's error.
func (e *Engine) Deliver(id engine.RequestID, packet []byte) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errClosed()
	}
	h := e.handler
	e.mu.Unlock()

	return h(id, packet)
}
