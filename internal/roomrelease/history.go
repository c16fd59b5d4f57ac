package roomrelease

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/jeeves-roomrelease/pkg/postgres"
)

var historySchema = []string{`
CREATE TABLE IF NOT EXISTS room_release_history (
	id          UUID PRIMARY KEY,
	room        TEXT NOT NULL,
	booking_id  TEXT NOT NULL,
	meeting_id  TEXT NOT NULL DEFAULT '',
	succeeded   BOOLEAN NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	declined_at TIMESTAMPTZ NOT NULL
)`, `
CREATE INDEX IF NOT EXISTS room_release_history_room_time
	ON room_release_history (room, declined_at DESC)`,
}

const insertHistory = `
INSERT INTO room_release_history (id, room, booking_id, meeting_id, succeeded, error, declined_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

const selectHistory = `
SELECT id, booking_id, meeting_id, succeeded, error, declined_at
FROM room_release_history
WHERE room = $1
ORDER BY declined_at DESC
LIMIT $2`

// HistoryEntry is one stored decline attempt
type HistoryEntry struct {
	ID         string    `json:"id"`
	Room       string    `json:"room"`
	BookingID  string    `json:"booking_id"`
	MeetingID  string    `json:"meeting_id"`
	Succeeded  bool      `json:"succeeded"`
	Error      string    `json:"error,omitempty"`
	DeclinedAt time.Time `json:"declined_at"`
}

// History persists booking decline attempts to Postgres
type History struct {
	db     postgres.Client
	logger *slog.Logger
}

// NewHistory creates a release history writer
func NewHistory(db postgres.Client, logger *slog.Logger) *History {
	return &History{db: db, logger: logger}
}

// EnsureSchema creates the history table and its index if needed
func (h *History) EnsureSchema(ctx context.Context) error {
	if err := h.db.Migrate(ctx, historySchema...); err != nil {
		return fmt.Errorf("failed to create release history schema: %w", err)
	}
	return nil
}

// RecordDecline stores one decline attempt
func (h *History) RecordDecline(ctx context.Context, ev Event) error {
	_, err := h.db.Exec(ctx, insertHistory,
		ev.ID,
		ev.Room,
		ev.BookingID,
		ev.MeetingID,
		ev.Type == EventDeclineSucceeded,
		ev.Error,
		ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert release history: %w", err)
	}

	h.logger.Debug("Recorded decline attempt", "room", ev.Room, "booking_id", ev.BookingID, "type", ev.Type)
	return nil
}

// Recent returns up to limit decline attempts for room, newest first
func (h *History) Recent(ctx context.Context, room string, limit int) ([]HistoryEntry, error) {
	rows, err := h.db.Query(ctx, selectHistory, room, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query release history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		e := HistoryEntry{Room: room}
		if err := rows.Scan(&e.ID, &e.BookingID, &e.MeetingID, &e.Succeeded, &e.Error, &e.DeclinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan release history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read release history: %w", err)
	}

	return entries, nil
}
