package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/careercounsel/cardroom/internal/services/game/storage"
)

const sessionColumns = "id, room_id, rule_id, status, state_json, version, created_at, updated_at, completed_at"

// CreateSession inserts a new session. A second session for a room whose
// previous session is still open returns storage.ErrActiveSessionExists.
func (s *Store) CreateSession(ctx context.Context, record storage.SessionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(record.RoomID) == "" {
		return fmt.Errorf("room id is required")
	}
	if !record.Status.Valid() {
		return fmt.Errorf("session status %q is invalid", record.Status)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	_, err := s.q.ExecContext(ctx,
		"INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID,
		record.RoomID,
		record.RuleID,
		string(record.Status),
		record.StateJSON,
		record.Version,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		toNullMillis(record.CompletedAt),
	)
	if err != nil {
		if isActiveRoomConflict(err) {
			return storage.ErrActiveSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SessionRecord{}, err
	}
	if strings.TrimSpace(id) == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}
	row := s.q.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	return scanSession(row)
}

// GetActiveSessionByRoom returns the room's open session.
func (s *Store) GetActiveSessionByRoom(ctx context.Context, roomID string) (storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SessionRecord{}, err
	}
	if strings.TrimSpace(roomID) == "" {
		return storage.SessionRecord{}, fmt.Errorf("room id is required")
	}
	row := s.q.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE room_id = ? AND status != ? ORDER BY created_at DESC LIMIT 1",
		roomID, string(storage.SessionStatusCompleted),
	)
	return scanSession(row)
}

// UpdateSessionState replaces the board when the stored version matches.
func (s *Store) UpdateSessionState(ctx context.Context, id string, expectedVersion int, record storage.SessionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.updateSessionState(ctx, id, expectedVersion, record)
}

func (s *Store) updateSessionState(ctx context.Context, id string, expectedVersion int, record storage.SessionRecord) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id is required")
	}
	if !record.Status.Valid() {
		return fmt.Errorf("session status %q is invalid", record.Status)
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	result, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET state_json = ?, version = ?, status = ?, updated_at = ?, completed_at = ?
WHERE id = ? AND version = ? AND status != ?`,
		record.StateJSON,
		record.Version,
		string(record.Status),
		toMillis(record.UpdatedAt),
		toNullMillis(record.CompletedAt),
		id,
		expectedVersion,
		string(storage.SessionStatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session state: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a missing row from a lost race.
	current, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == storage.SessionStatusCompleted {
		return fmt.Errorf("update session state: session %s is completed: %w", id, storage.ErrVersionConflict)
	}
	return storage.ErrVersionConflict
}

// UpdateSessionStatus sets the lifecycle status when the board is still at
// expectedVersion. Completing stamps completed_at with at.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, expectedVersion int, status storage.SessionStatus, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("session status %q is invalid", status)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var completedAt sql.NullInt64
	if status == storage.SessionStatusCompleted {
		completedAt = sql.NullInt64{Int64: toMillis(at), Valid: true}
	}

	result, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET status = ?, updated_at = ?, completed_at = ?
WHERE id = ? AND version = ? AND status != ?`,
		string(status), toMillis(at), completedAt,
		id, expectedVersion, string(storage.SessionStatusCompleted),
	)
	if err != nil {
		if isActiveRoomConflict(err) {
			return storage.ErrActiveSessionExists
		}
		return fmt.Errorf("update session status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	return storage.ErrVersionConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (storage.SessionRecord, error) {
	var (
		record      storage.SessionRecord
		status      string
		createdAt   int64
		updatedAt   int64
		completedAt sql.NullInt64
	)
	err := row.Scan(
		&record.ID,
		&record.RoomID,
		&record.RuleID,
		&status,
		&record.StateJSON,
		&record.Version,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	record.Status = storage.SessionStatus(status)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.CompletedAt = fromNullMillis(completedAt)
	return record, nil
}
