package engine

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/roach88/synthctl/internal/bufpool"
	"github.com/roach88/synthctl/internal/fault"
	"github.com/roach88/synthctl/internal/ids"
	"github.com/roach88/synthctl/internal/osc"
)

// Session defaults.
const (
	DefaultPacketSize   = 8192
	DefaultNodeIDOffset = 1
	DefaultNodeIDs      = 1023

	// MinPacketSize leaves room for a bundle header and one small message.
	MinPacketSize = 64
)

// Recorder receives every packet the engine accepted, stamped with the
// engine time at send. Recording errors are logged and never fail the send.
//
// Record runs after the backend accepted the packet and outside any session
// lock. Packets sent concurrently from several goroutines may therefore be
// recorded in a different order than the engine accepted them. Packets sent
// from one goroutine are recorded in send order. packet is only valid for
// the duration of the call.
type Recorder interface {
	Record(at Time, packet []byte) error
}

// Session is one live engine together with the bookkeeping needed to talk
// to it: node ids, packet buffers, request ids and pending replies.
//
// Thread-safety: Session is safe for concurrent use. Requests and bundles
// obtained from it are not; each belongs to one goroutine. No lock is held
// while a packet is handed to the backend or while a reply handler runs.
type Session struct {
	id       string
	backend  Backend
	pool     *bufpool.Pool
	logger   *slog.Logger
	recorder Recorder

	packetSize   int
	nodeOffset   int32
	nodeCapacity int
	idGen        IDGenerator

	idsMu   sync.Mutex
	nodeIDs *ids.Allocator

	requestIDs *requestIDs

	pendingMu sync.Mutex
	pending   map[RequestID]ReplyHandler

	subsMu  sync.RWMutex
	subs    []subscriber
	nextSub uint64

	closed atomic.Bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPacketSize sets the size of every packet buffer.
//
// Default: 8192 bytes (DefaultPacketSize). Must be at least MinPacketSize.
func WithPacketSize(n int) SessionOption {
	return func(s *Session) {
		s.packetSize = n
	}
}

// WithNodeIDs sets the window of node ids the session allocates from.
//
// Default: 1023 ids starting at 1. Id 0 is the root group.
func WithNodeIDs(offset int32, capacity int) SessionOption {
	return func(s *Session) {
		s.nodeOffset = offset
		s.nodeCapacity = capacity
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder records every sent packet.
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// WithIDGenerator sets the session id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) SessionOption {
	return func(s *Session) {
		if g != nil {
			s.idGen = g
		}
	}
}

// Open creates an engine through d, configured by options, and returns a
// session that manages it. The engine is created stopped; call Start.
func Open(d Driver, options []Option, opts ...SessionOption) (*Session, error) {
	const op = "engine.open"
	if d == nil {
		return nil, fault.New(fault.CodeArgument, op, "nil driver")
	}

	s := &Session{
		logger:       slog.Default(),
		packetSize:   DefaultPacketSize,
		nodeOffset:   DefaultNodeIDOffset,
		nodeCapacity: DefaultNodeIDs,
		idGen:        UUIDv7Generator{},
		requestIDs:   newRequestIDs(),
		pending:      make(map[RequestID]ReplyHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.packetSize < MinPacketSize:
		return nil, fault.Newf(fault.CodeArgument, op, "packet size %d below minimum %d", s.packetSize, MinPacketSize)
	case s.nodeOffset < 1:
		return nil, fault.Newf(fault.CodeArgument, op, "node id offset %d collides with the root group", s.nodeOffset)
	case s.nodeCapacity < 1 || int64(s.nodeOffset)+int64(s.nodeCapacity)-1 > math.MaxInt32:
		return nil, fault.Newf(fault.CodeArgument, op, "node id capacity %d out of range", s.nodeCapacity)
	}

	if s.id == "" {
		s.id = s.idGen.Generate()
	}
	s.logger = s.logger.With("session", s.id)
	s.pool = bufpool.New(s.packetSize)
	s.nodeIDs = ids.NewAllocator(s.nodeOffset, s.nodeCapacity)

	buf := s.pool.Get()
	defer s.pool.Put(buf)

	w := osc.NewWriter(buf)
	if err := encodeOptions(w, options); err != nil {
		return nil, err
	}
	backend, err := d.Open(s.HandlePacket, w.Bytes())
	if err != nil {
		return nil, translate(op, err)
	}
	s.backend = backend

	s.logger.Info("engine session opened",
		"packet_size", s.packetSize,
		"node_ids", s.nodeCapacity,
		"options", len(options))
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Root returns the root group of the engine's node tree.
func (s *Session) Root() GroupID {
	return Root()
}

// Start starts audio processing.
func (s *Session) Start() error {
	const op = "engine.start"
	if s.closed.Load() {
		return fault.Misuse(op, "session closed")
	}
	if err := s.backend.Start(); err != nil {
		return translate(op, err)
	}
	s.logger.Info("engine started")
	return nil
}

// Stop stops audio processing. The node tree is kept.
func (s *Session) Stop() error {
	const op = "engine.stop"
	if s.closed.Load() {
		return fault.Misuse(op, "session closed")
	}
	if err := s.backend.Stop(); err != nil {
		return translate(op, err)
	}
	s.logger.Info("engine stopped")
	return nil
}

// CurrentTime returns the engine clock in seconds.
func (s *Session) CurrentTime() Time {
	return s.backend.CurrentTime()
}

// Close discards pending reply handlers without calling them and releases
// the engine. Later operations fail with a LogicError. Close is safe to call
// more than once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.backend.Close()

	s.pendingMu.Lock()
	discarded := len(s.pending)
	clear(s.pending)
	s.pendingMu.Unlock()

	s.subsMu.Lock()
	s.subs = nil
	s.subsMu.Unlock()

	s.logger.Info("engine session closed", "discarded_replies", discarded)
	return translate("engine.close", err)
}

// Stats is a snapshot of session bookkeeping.
type Stats struct {
	LiveNodes int
	Pending   int
	Buffers   bufpool.Stats
}

// Stats returns a snapshot of session bookkeeping.
func (s *Session) Stats() Stats {
	s.idsMu.Lock()
	live := s.nodeIDs.Live()
	s.idsMu.Unlock()
	return Stats{LiveNodes: live, Pending: s.Pending(), Buffers: s.pool.Stats()}
}

// NewRequest returns an empty request for a single command. The caller
// must Release it.
func (s *Session) NewRequest() *Request {
	return newRequest(s)
}

// NewBundle returns an open top-level bundle scheduled at t. The caller
// must Release it.
func (s *Session) NewBundle(t Time) *Bundle {
	r := newRequest(s)
	// MinPacketSize guarantees room for the header.
	if err := r.p.w.BeginBundle(t.timeTag()); err != nil {
		panic(err)
	}
	r.bundle = &bundleState{level: 1}
	return &Bundle{Request: *r}
}

// Group creates a group at the head of parent and sends it.
func (s *Session) Group(parent GroupID) (GroupID, error) {
	r := s.NewRequest()
	defer r.Release()

	g, err := r.Group(parent)
	if err != nil {
		return GroupID{}, err
	}
	if err := r.Send(); err != nil {
		return GroupID{}, err
	}
	return g, nil
}

// Synth creates a synth at the head of parent and sends it. The synth is
// silent until activated.
func (s *Session) Synth(def string, parent GroupID, controls []float32, options []Value) (SynthID, error) {
	r := s.NewRequest()
	defer r.Release()

	id, err := r.Synth(def, parent, controls, options)
	if err != nil {
		return SynthID{}, err
	}
	if err := r.Send(); err != nil {
		return SynthID{}, err
	}
	return id, nil
}

// Activate starts synth.
func (s *Session) Activate(synth SynthID) error {
	return s.oneShot(func(r *Request) error { return r.Activate(synth) })
}

// MapInput connects audio input index of synth to bus.
func (s *Session) MapInput(synth SynthID, index int, bus AudioBusID, flags BusMapping) error {
	return s.oneShot(func(r *Request) error { return r.MapInput(synth, index, bus, flags) })
}

// MapOutput connects audio output index of synth to bus.
func (s *Session) MapOutput(synth SynthID, index int, bus AudioBusID, flags BusMapping) error {
	return s.oneShot(func(r *Request) error { return r.MapOutput(synth, index, bus, flags) })
}

// Set assigns value to control input index of node.
func (s *Session) Set(node Node, index int, value float32) error {
	return s.oneShot(func(r *Request) error { return r.Set(node, index, value) })
}

// Free destroys node.
func (s *Session) Free(node Node) error {
	return s.oneShot(func(r *Request) error { return r.Free(node) })
}

// Bundle builds one top-level bundle scheduled at t with fn and sends it.
// Nothing is sent if fn fails.
func (s *Session) Bundle(t Time, fn func(*Bundle) error) error {
	b := s.NewBundle(t)
	defer b.Release()

	if fn != nil {
		if err := fn(b); err != nil {
			return err
		}
	}
	return b.Send()
}

func (s *Session) oneShot(build func(*Request) error) error {
	r := s.NewRequest()
	defer r.Release()

	if err := build(r); err != nil {
		return err
	}
	return r.Send()
}

// send hands a finished packet to the backend and records it.
func (s *Session) send(packet []byte) error {
	const op = "engine.send"
	if s.closed.Load() {
		return fault.Misuse(op, "session closed")
	}
	if err := s.backend.Send(packet); err != nil {
		return translate(op, err)
	}
	if s.recorder != nil {
		if err := s.recorder.Record(s.backend.CurrentTime(), packet); err != nil {
			s.logger.Warn("packet not recorded", "size", len(packet), "error", err)
		}
	}
	return nil
}

func (s *Session) allocNode() (int32, error) {
	s.idsMu.Lock()
	defer s.idsMu.Unlock()
	return s.nodeIDs.Alloc()
}

// releaseNode returns an id whose command was never written.
func (s *Session) releaseNode(id int32) {
	s.idsMu.Lock()
	defer s.idsMu.Unlock()
	if err := s.nodeIDs.Free(id); err != nil {
		s.logger.Warn("node id not released", "id", id, "error", err)
	}
}

func (s *Session) freeNode(id int32) error {
	s.idsMu.Lock()
	defer s.idsMu.Unlock()
	return s.nodeIDs.Free(id)
}

func (s *Session) liveNode(id int32) bool {
	s.idsMu.Lock()
	defer s.idsMu.Unlock()
	return s.nodeIDs.Contains(id)
}

// rollback undoes the id bookkeeping of a packet that was never sent.
// Freed ids are reclaimed before created ids are released, so an id both
// created and freed by the packet ends up free.
func (s *Session) rollback(created, freed []int32) {
	if len(created) == 0 && len(freed) == 0 {
		return
	}
	s.idsMu.Lock()
	defer s.idsMu.Unlock()
	for _, id := range freed {
		if err := s.nodeIDs.Reserve(id); err != nil {
			s.logger.Warn("freed node id already reused", "id", id, "error", err)
		}
	}
	for _, id := range created {
		if err := s.nodeIDs.Free(id); err != nil {
			s.logger.Warn("node id not released", "id", id, "error", err)
		}
	}
}
