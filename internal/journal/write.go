package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/synthctl/internal/engine"
)

// Entry is one journaled packet.
type Entry struct {
	SessionID string
	Seq       int64
	Time      engine.Time
	Packet    []byte
}

// BeginSession records a session. Beginning an existing session is a
// no-op, so a recorder can resume after a restart.
func (s *Store) BeginSession(ctx context.Context, id string, startedAt time.Time) error {
	if id == "" {
		return fmt.Errorf("begin session: empty session id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, startedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	return nil
}

// Record appends one packet. The session must exist and seq must be new
// within it.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if len(e.Packet) == 0 {
		return fmt.Errorf("record packet %d: empty packet", e.Seq)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO packets (session_id, seq, engine_time, data)
		VALUES (?, ?, ?, ?)
	`, e.SessionID, e.Seq, float64(e.Time), e.Packet)
	if err != nil {
		return fmt.Errorf("record packet %d: %w", e.Seq, err)
	}
	return nil
}

// NextSeq returns the seq the next packet of a session should use.
func (s *Store) NextSeq(ctx context.Context, sessionID string) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM packets WHERE session_id = ?
	`, sessionID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return next, nil
}
