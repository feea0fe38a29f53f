package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/synthctl/internal/engine"
)

// Recorder journals the packets of one session. It implements
// engine.Recorder.
//
// Thread-safety: Recorder is safe for concurrent use. Packets are numbered
// in the order Record is called.
type Recorder struct {
	store   *Store
	ctx     context.Context
	session string

	mu   sync.Mutex
	next int64
}

var _ engine.Recorder = (*Recorder)(nil)

// Recorder begins sessionID and returns a recorder that appends to it.
// ctx bounds every write the recorder makes.
func (s *Store) Recorder(ctx context.Context, sessionID string) (*Recorder, error) {
	if err := s.BeginSession(ctx, sessionID, time.Now()); err != nil {
		return nil, err
	}
	next, err := s.NextSeq(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("open recorder: %w", err)
	}
	return &Recorder{store: s, ctx: ctx, session: sessionID, next: next}, nil
}

// SessionID returns the session the recorder appends to.
func (r *Recorder) SessionID() string {
	return r.session
}

// Record appends packet stamped with engine time at.
func (r *Recorder) Record(at engine.Time, packet []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.store.Record(r.ctx, Entry{
		SessionID: r.session,
		Seq:       r.next,
		Time:      at,
		Packet:    packet,
	})
	if err != nil {
		return err
	}
	r.next++
	return nil
}
