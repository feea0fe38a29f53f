package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/synthctl/internal/engine"
)

// ErrSessionNotFound is returned when a session id is not in the journal.
var ErrSessionNotFound = errors.New("session not found")

// SessionSummary describes one journaled session.
type SessionSummary struct {
	ID        string
	StartedAt time.Time
	Packets   int
	Bytes     int64
	// LastTime is the engine time of the last packet, 0 if none.
	LastTime engine.Time
}

const summaryQuery = `
	SELECT s.id, s.started_at, COUNT(p.seq),
	       COALESCE(SUM(LENGTH(p.data)), 0), COALESCE(MAX(p.engine_time), 0)
	FROM sessions s
	LEFT JOIN packets p ON p.session_id = s.id
`

// Sessions returns every session, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, summaryQuery+`
		GROUP BY s.id
		ORDER BY s.started_at ASC, s.id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("read sessions: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return out, nil
}

// Session returns one session, or ErrSessionNotFound.
func (s *Store) Session(ctx context.Context, id string) (SessionSummary, error) {
	row := s.db.QueryRowContext(ctx, summaryQuery+`
		WHERE s.id = ?
		GROUP BY s.id
	`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionSummary{}, fmt.Errorf("read session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return SessionSummary{}, fmt.Errorf("read session %q: %w", id, err)
	}
	return sum, nil
}

// Entries returns the packets of a session in send order.
func (s *Store) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, engine_time, data
		FROM packets
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at float64
		)
		if err := rows.Scan(&e.SessionID, &e.Seq, &at, &e.Packet); err != nil {
			return nil, fmt.Errorf("read entries: %w", err)
		}
		e.Time = engine.Time(at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (SessionSummary, error) {
	var (
		sum     SessionSummary
		started int64
		last    float64
	)
	if err := row.Scan(&sum.ID, &started, &sum.Packets, &sum.Bytes, &last); err != nil {
		return SessionSummary{}, err
	}
	sum.StartedAt = time.UnixMilli(started).UTC()
	sum.LastTime = engine.Time(last)
	return sum, nil
}
