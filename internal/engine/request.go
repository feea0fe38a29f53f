package engine

import (
	"math"

	"github.com/roach88/synthctl/internal/fault"
	"github.com/roach88/synthctl/internal/osc"
)

// Command addresses.
const (
	AddrGroupNew       = "/group/new"
	AddrSynthNew       = "/synth/new"
	AddrSynthActivate  = "/synth/activate"
	AddrSynthMapInput  = "/synth/map/input"
	AddrSynthMapOutput = "/synth/map/output"
	AddrNodeSet        = "/node/set"
	AddrNodeFree       = "/node/free"
)

// addToHead is the only placement the engine supports for new nodes.
const addToHead int32 = 0

// packet is the pooled buffer shared by a request and every bundle nested
// inside it.
type packet struct {
	s   *Session
	buf []byte
	w   osc.Writer

	sent     bool
	released bool

	// ids allocated or released while building, undone if the packet is
	// never sent.
	created []int32
	freed   []int32
}

// Request builds one packet for the engine.
//
// A Request owns one pooled buffer until Release. Commands are written
// atomically: a command that fails leaves the packet as it was. A plain
// Request carries exactly one command; use a Bundle for more.
//
// Thread-safety: Request is NOT safe for concurrent use.
type Request struct {
	p      *packet
	bundle *bundleState
}

func newRequest(s *Session) *Request {
	p := &packet{s: s, buf: s.pool.Get()}
	p.w.Reset(p.buf)
	return &Request{p: p}
}

// Release returns the buffer to the pool. It is safe to call more than
// once. If the request was never sent, node ids it allocated are returned
// to the allocator and ids it freed are reclaimed. Release on a nested
// bundle does nothing; the top-level owner releases.
func (r *Request) Release() {
	if r.bundle != nil && r.bundle.nested {
		return
	}
	p := r.p
	if p.released {
		return
	}
	p.released = true
	if !p.sent {
		p.s.rollback(p.created, p.freed)
	}
	p.created, p.freed = nil, nil
	p.w.Reset(nil)
	p.s.pool.Put(p.buf)
	p.buf = nil
}

// Bytes returns the packet encoded so far. The slice aliases the pooled
// buffer and is invalid after Release.
func (r *Request) Bytes() []byte {
	return r.p.w.Bytes()
}

// check reports whether r may accept another command.
func (r *Request) check(op string) error {
	p := r.p
	switch {
	case p.released:
		return fault.Misuse(op, "request released")
	case p.sent:
		return fault.Misuse(op, "request already sent")
	}
	if r.bundle == nil {
		if p.w.Complete() {
			return fault.Misuse(op, "request holds one command; use a bundle")
		}
		return nil
	}
	if r.bundle.closed {
		return fault.Misuse(op, "bundle closed")
	}
	if p.w.Depth() != r.bundle.level {
		return fault.Misuse(op, "bundle is not the innermost open bundle")
	}
	return nil
}

// command writes one message with tags type tags. body writes the
// arguments. On failure the writer is rewound.
func (r *Request) command(address string, tags int, body func(w *osc.Writer) error) error {
	w := &r.p.w
	m := w.Mark()
	err := w.BeginMessage(address, tags)
	if err == nil {
		err = body(w)
	}
	if err == nil {
		err = w.EndMessage()
	}
	if err != nil {
		w.Rewind(m)
		return err
	}
	return nil
}

// Group creates a group at the head of parent.
func (r *Request) Group(parent GroupID) (GroupID, error) {
	if !parent.Valid() {
		return GroupID{}, fault.New(fault.CodeArgument, AddrGroupNew, "invalid parent group")
	}
	if err := r.check(AddrGroupNew); err != nil {
		return GroupID{}, err
	}
	id, err := r.p.s.allocNode()
	if err != nil {
		return GroupID{}, err
	}
	err = r.command(AddrGroupNew, 3, func(w *osc.Writer) error {
		if err := w.Int32(id); err != nil {
			return err
		}
		if err := w.Int32(parent.ID()); err != nil {
			return err
		}
		return w.Int32(addToHead)
	})
	if err != nil {
		r.p.s.releaseNode(id)
		return GroupID{}, err
	}
	r.p.created = append(r.p.created, id)
	return NewGroupID(id), nil
}

// Synth creates an instance of the named synth definition at the head of
// parent. controls are initial control input values; options are passed to
// the definition constructor.
func (r *Request) Synth(def string, parent GroupID, controls []float32, options []Value) (SynthID, error) {
	if def == "" {
		return SynthID{}, fault.New(fault.CodeArgument, AddrSynthNew, "empty synth definition name")
	}
	if !parent.Valid() {
		return SynthID{}, fault.New(fault.CodeArgument, AddrSynthNew, "invalid parent group")
	}
	for i, v := range options {
		if v.Type() == 0 {
			return SynthID{}, fault.Newf(fault.CodeArgument, AddrSynthNew, "option %d has no type", i)
		}
	}
	if err := r.check(AddrSynthNew); err != nil {
		return SynthID{}, err
	}
	id, err := r.p.s.allocNode()
	if err != nil {
		return SynthID{}, err
	}
	tags := 4 + len(controls) + 2 + len(options) + 2
	err = r.command(AddrSynthNew, tags, func(w *osc.Writer) error {
		if err := w.String(def); err != nil {
			return err
		}
		for _, v := range [...]int32{id, parent.ID(), addToHead} {
			if err := w.Int32(v); err != nil {
				return err
			}
		}
		if err := w.BeginArray(); err != nil {
			return err
		}
		for _, c := range controls {
			if err := w.Float32(c); err != nil {
				return err
			}
		}
		if err := w.EndArray(); err != nil {
			return err
		}
		if err := w.BeginArray(); err != nil {
			return err
		}
		for _, v := range options {
			if err := v.put(w); err != nil {
				return err
			}
		}
		return w.EndArray()
	})
	if err != nil {
		r.p.s.releaseNode(id)
		return SynthID{}, err
	}
	r.p.created = append(r.p.created, id)
	return NewSynthID(id), nil
}

// Activate starts a synth created earlier. Synths are silent until
// activated.
func (r *Request) Activate(synth SynthID) error {
	if !synth.Valid() {
		return fault.New(fault.CodeArgument, AddrSynthActivate, "invalid synth")
	}
	if err := r.check(AddrSynthActivate); err != nil {
		return err
	}
	return r.command(AddrSynthActivate, 1, func(w *osc.Writer) error {
		return w.Int32(synth.ID())
	})
}

// MapInput connects audio input index of synth to bus.
func (r *Request) MapInput(synth SynthID, index int, bus AudioBusID, flags BusMapping) error {
	return r.mapBus(AddrSynthMapInput, synth, index, bus, flags)
}

// MapOutput connects audio output index of synth to bus.
func (r *Request) MapOutput(synth SynthID, index int, bus AudioBusID, flags BusMapping) error {
	return r.mapBus(AddrSynthMapOutput, synth, index, bus, flags)
}

func (r *Request) mapBus(address string, synth SynthID, index int, bus AudioBusID, flags BusMapping) error {
	switch {
	case !synth.Valid():
		return fault.New(fault.CodeArgument, address, "invalid synth")
	case !bus.Valid():
		return fault.New(fault.CodeArgument, address, "invalid audio bus")
	case index < 0 || index > math.MaxInt32:
		return fault.Newf(fault.CodeArgument, address, "port index %d out of range", index)
	}
	if err := r.check(address); err != nil {
		return err
	}
	return r.command(address, 4, func(w *osc.Writer) error {
		for _, v := range [...]int32{synth.ID(), int32(index), bus.ID(), int32(flags)} {
			if err := w.Int32(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Set assigns value to control input index of node.
func (r *Request) Set(node Node, index int, value float32) error {
	if node == nil || !node.Node().Valid() {
		return fault.New(fault.CodeArgument, AddrNodeSet, "invalid node")
	}
	if index < 0 || index > math.MaxInt32 {
		return fault.Newf(fault.CodeArgument, AddrNodeSet, "control index %d out of range", index)
	}
	if err := r.check(AddrNodeSet); err != nil {
		return err
	}
	id := node.Node().ID()
	return r.command(AddrNodeSet, 3, func(w *osc.Writer) error {
		if err := w.Int32(id); err != nil {
			return err
		}
		if err := w.Int32(int32(index)); err != nil {
			return err
		}
		return w.Float32(value)
	})
}

// Free destroys node and returns its id to the allocator immediately,
// before the packet is sent. The id may be handed out again by a later
// allocation even though the engine has not processed the free yet.
func (r *Request) Free(node Node) error {
	if node == nil || !node.Node().Valid() {
		return fault.New(fault.CodeArgument, AddrNodeFree, "invalid node")
	}
	if err := r.check(AddrNodeFree); err != nil {
		return err
	}
	id := node.Node().ID()
	if !r.p.s.liveNode(id) {
		return fault.Newf(fault.CodeInvalidIdentifier, AddrNodeFree, "node %d is not allocated", id)
	}
	w := &r.p.w
	m := w.Mark()
	err := r.command(AddrNodeFree, 1, func(w *osc.Writer) error {
		return w.Int32(id)
	})
	if err != nil {
		return err
	}
	if err := r.p.s.freeNode(id); err != nil {
		w.Rewind(m)
		return err
	}
	r.p.freed = append(r.p.freed, id)
	return nil
}

// Send hands the packet to the engine. Every bundle still open is closed
// first. Send on a nested bundle is a protocol misuse. A failed send
// leaves the request unsent so it may be retried or released.
func (r *Request) Send() error {
	const op = "engine.send"
	if r.bundle != nil && r.bundle.nested {
		return fault.Misuse(op, "cannot send a nested bundle")
	}
	p := r.p
	switch {
	case p.released:
		return fault.Misuse(op, "request released")
	case p.sent:
		return fault.Misuse(op, "request already sent")
	}
	if r.bundle != nil && !r.bundle.closed {
		for p.w.Depth() > 0 {
			if err := p.w.EndBundle(); err != nil {
				return err
			}
		}
		r.bundle.closed = true
	}
	if p.w.Len() == 0 {
		return fault.New(fault.CodeArgument, op, "empty request")
	}
	if err := p.s.send(p.w.Bytes()); err != nil {
		return err
	}
	p.sent = true
	return nil
}
