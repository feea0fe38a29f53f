package engine

import (
	"github.com/roach88/synthctl/internal/fault"
)

type bundleState struct {
	// level is the writer depth while this bundle is the innermost one.
	level  int
	nested bool
	closed bool
}

// Bundle groups commands that the engine executes together at one time.
// It supports every Request command and may contain nested bundles with
// their own times. Only the top-level bundle can be sent.
type Bundle struct {
	Request
}

// Bundle opens a nested bundle scheduled at t, calls fn with it and closes
// it again, even if fn fails. It returns fn's error. Commands on b are a
// protocol misuse until fn returns.
func (b *Bundle) Bundle(t Time, fn func(*Bundle) error) error {
	const op = "engine.bundle"
	if err := b.check(op); err != nil {
		return err
	}
	w := &b.p.w
	if err := w.BeginBundle(t.timeTag()); err != nil {
		return err
	}
	child := &Bundle{Request{
		p:      b.p,
		bundle: &bundleState{level: w.Depth(), nested: true},
	}}
	var err error
	if fn != nil {
		err = fn(child)
	}
	if cerr := child.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close writes the end of b. It is safe to call more than once, and does
// nothing once the packet was sent. Closing a bundle while one of its
// children is open is a protocol misuse.
func (b *Bundle) Close() error {
	const op = "engine.bundle.close"
	st := b.bundle
	if st.closed {
		return nil
	}
	p := b.p
	if p.sent {
		// Send already wrote the end of every open bundle.
		st.closed = true
		return nil
	}
	if p.released {
		return fault.Misuse(op, "request released")
	}
	if d := p.w.Depth(); d != st.level {
		return fault.Misuse(op, "nested bundle still open")
	}
	if err := p.w.EndBundle(); err != nil {
		return err
	}
	st.closed = true
	return nil
}
