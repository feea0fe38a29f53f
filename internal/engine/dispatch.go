package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/synthctl/internal/fault"
)

const (
	opRegister = "engine.register"
	opCall     = "engine.call"
)

// ReplyHandler consumes the reply to one request. The packet is only valid
// for the duration of the call. The returned error propagates out of the
// backend delivery that invoked it.
type ReplyHandler func(id RequestID, packet []byte) error

// NotificationHandler consumes an unsolicited engine packet. The packet is
// a copy shared by every subscriber and must not be modified.
type NotificationHandler func(packet []byte)

// requestIDs hands out request ids. It starts at 1, wraps through the whole
// int32 range and never returns Notification.
//
// Thread-safety: requestIDs is safe for concurrent use.
type requestIDs struct {
	mu   sync.Mutex
	next RequestID
}

func newRequestIDs() *requestIDs {
	return newRequestIDsAt(Notification + 1)
}

// newRequestIDsAt starts the counter at start, for testing wraparound.
func newRequestIDsAt(start RequestID) *requestIDs {
	return &requestIDs{next: start}
}

func (c *requestIDs) Next() RequestID {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.next
	if id == Notification {
		id++
	}
	c.next = id + 1
	return id
}

type subscriber struct {
	id uint64
	fn NotificationHandler
}

// NextRequestID returns a fresh request id, never Notification.
func (s *Session) NextRequestID() RequestID {
	return s.requestIDs.Next()
}

// Register installs h as the handler for the reply to id. It fails with a
// LogicError if a handler for id is already pending; see
// IsDuplicateRequest.
func (s *Session) Register(id RequestID, h ReplyHandler) error {
	if id == Notification {
		return fault.New(fault.CodeArgument, opRegister, "request id 0 is reserved for notifications")
	}
	if h == nil {
		return fault.New(fault.CodeArgument, opRegister, "nil reply handler")
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	// Close sets closed before it clears pending under this lock.
	if s.closed.Load() {
		return fault.Misuse(opRegister, "session closed")
	}
	if _, ok := s.pending[id]; ok {
		return fault.Wrap(fault.CodeLogic, opRegister, duplicateRequestError{id: id})
	}
	s.pending[id] = h
	return nil
}

// Unregister removes the pending handler for id, reporting whether one
// was registered.
func (s *Session) Unregister(id RequestID) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	return true
}

// Pending returns the number of requests awaiting a reply.
func (s *Session) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// Call builds a request, registers h for its reply and sends it. build
// receives the request id to embed in the command. If building or sending
// fails nothing stays registered.
func (s *Session) Call(build func(r *Request, id RequestID) error, h ReplyHandler) (RequestID, error) {
	if build == nil {
		return Notification, fault.New(fault.CodeArgument, opCall, "nil build function")
	}
	id := s.NextRequestID()
	if err := s.Register(id, h); err != nil {
		return Notification, err
	}

	r := s.NewRequest()
	defer r.Release()

	if err := build(r, id); err != nil {
		s.Unregister(id)
		return Notification, fmt.Errorf("build request %d: %w", id, err)
	}
	if err := r.Send(); err != nil {
		s.Unregister(id)
		return Notification, err
	}
	return id, nil
}

// HandlePacket routes one packet from the engine. It is the PacketHandler
// the session installs on its backend.
//
// Notifications go to every subscriber. A reply runs and removes the
// handler registered for its id; it runs at most once even if the engine
// replies twice. Replies with no pending handler are dropped.
func (s *Session) HandlePacket(id RequestID, packet []byte) error {
	if id == Notification {
		s.notify(packet)
		return nil
	}

	s.pendingMu.Lock()
	h, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	if !ok {
		s.logger.Debug("reply dropped", "request_id", id, "size", len(packet))
		return nil
	}
	if err := h(id, packet); err != nil {
		return fmt.Errorf("reply to request %d: %w", id, err)
	}
	return nil
}

// Subscribe adds h to the notification subscribers. The returned cancel
// function removes it and is safe to call more than once.
func (s *Session) Subscribe(h NotificationHandler) (cancel func()) {
	if h == nil {
		return func() {}
	}

	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: h})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
		})
	}
}

func (s *Session) notify(packet []byte) {
	s.subsMu.RLock()
	if len(s.subs) == 0 {
		s.subsMu.RUnlock()
		s.logger.Debug("notification dropped", "size", len(packet))
		return
	}
	subs := slices.Clone(s.subs)
	s.subsMu.RUnlock()

	cp := slices.Clone(packet)
	for _, sub := range subs {
		sub.fn(cp)
	}
}
