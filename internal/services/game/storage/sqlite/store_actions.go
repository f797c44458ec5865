package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/careercounsel/cardroom/internal/platform/errors"
	"github.com/careercounsel/cardroom/internal/services/game/core/filter"
	"github.com/careercounsel/cardroom/internal/services/game/storage"
	"github.com/careercounsel/cardroom/internal/services/game/storage/integrity"
)

const actionColumns = "session_id, seq, player_id, action_type, card_id, source_zone, target_zone, from_version, to_version, payload_json, created_at, prev_hash, chain_hash, signature, signature_key_id"

// AppendAction assigns the next sequence number, links the record into the
// session's hash chain and stores it.
func (s *Store) AppendAction(ctx context.Context, record storage.ActionRecord) (storage.ActionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ActionRecord{}, err
	}

	var stored storage.ActionRecord
	err := s.inTx(ctx, func(tx *Store) error {
		var err error
		stored, err = tx.appendAction(ctx, record)
		return err
	})
	if err != nil {
		return storage.ActionRecord{}, err
	}
	return stored, nil
}

// ApplyTransition swaps the session board and appends the action in one
// transaction. Nothing is written on a version conflict.
func (s *Store) ApplyTransition(ctx context.Context, expectedVersion int, session storage.SessionRecord, action storage.ActionRecord) (storage.ActionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ActionRecord{}, err
	}
	if action.SessionID == "" {
		action.SessionID = session.ID
	}
	if action.SessionID != session.ID {
		return storage.ActionRecord{}, fmt.Errorf("action session %q does not match session %q", action.SessionID, session.ID)
	}

	var stored storage.ActionRecord
	err := s.inTx(ctx, func(tx *Store) error {
		if err := tx.updateSessionState(ctx, session.ID, expectedVersion, session); err != nil {
			return err
		}
		var err error
		stored, err = tx.appendAction(ctx, action)
		return err
	})
	if err != nil {
		return storage.ActionRecord{}, err
	}
	return stored, nil
}

func (s *Store) appendAction(ctx context.Context, record storage.ActionRecord) (storage.ActionRecord, error) {
	if strings.TrimSpace(record.SessionID) == "" {
		return storage.ActionRecord{}, fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(record.ActionType) == "" {
		return storage.ActionRecord{}, fmt.Errorf("action type is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.CreatedAt = record.CreatedAt.UTC().Truncate(time.Millisecond)

	var (
		lastSeq  int64
		prevHash string
	)
	err := s.q.QueryRowContext(ctx,
		"SELECT seq, chain_hash FROM actions WHERE session_id = ? ORDER BY seq DESC LIMIT 1",
		record.SessionID,
	).Scan(&lastSeq, &prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storage.ActionRecord{}, fmt.Errorf("load chain head: %w", err)
	}
	record.Seq = lastSeq + 1

	sealed, err := integrity.Seal(record, prevHash, s.keyring)
	if err != nil {
		return storage.ActionRecord{}, fmt.Errorf("seal action: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		"INSERT INTO actions ("+actionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		sealed.SessionID,
		sealed.Seq,
		sealed.PlayerID,
		sealed.ActionType,
		sealed.CardID,
		sealed.SourceZone,
		sealed.TargetZone,
		sealed.FromVersion,
		sealed.ToVersion,
		sealed.PayloadJSON,
		toMillis(sealed.CreatedAt),
		sealed.PrevHash,
		sealed.ChainHash,
		sealed.Signature,
		sealed.SignatureKeyID,
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ActionRecord{}, storage.ErrVersionConflict
		}
		return storage.ActionRecord{}, fmt.Errorf("insert action: %w", err)
	}
	return sealed, nil
}

// ListActions returns one page of a session's history in sequence order.
func (s *Store) ListActions(ctx context.Context, sessionID string, opts storage.ListActionsOptions) (storage.ActionPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ActionPage{}, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return storage.ActionPage{}, fmt.Errorf("session id is required")
	}
	cond, err := filter.ParseActionFilter(opts.Filter)
	if err != nil {
		return storage.ActionPage{}, apperrors.Wrap(apperrors.CodeFilterInvalid, "invalid filter", err)
	}

	plan := buildListActionsSQLPlan(listActionsRequest{
		SessionID:    sessionID,
		AfterSeq:     opts.AfterSeq,
		PageSize:     s.clampPageSize(opts.PageSize),
		FilterClause: cond.Clause,
		FilterParams: cond.Params,
	})

	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM actions WHERE %s %s %s", actionColumns, plan.whereClause, plan.orderClause, plan.limitClause),
		plan.params...,
	)
	if err != nil {
		return storage.ActionPage{}, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	actions := make([]storage.ActionRecord, 0, plan.pageSize)
	for rows.Next() {
		record, err := scanAction(rows)
		if err != nil {
			return storage.ActionPage{}, err
		}
		actions = append(actions, record)
	}
	if err := rows.Err(); err != nil {
		return storage.ActionPage{}, fmt.Errorf("iterate actions: %w", err)
	}

	page := storage.ActionPage{}
	if len(actions) > plan.pageSize {
		actions = actions[:plan.pageSize]
		page.NextAfterSeq = actions[len(actions)-1].Seq
	}
	page.Actions = actions

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM actions WHERE %s", plan.countWhereClause)
	if err := s.q.QueryRowContext(ctx, countQuery, plan.countParams...).Scan(&page.TotalCount); err != nil {
		return storage.ActionPage{}, fmt.Errorf("count actions: %w", err)
	}
	return page, nil
}

func (s *Store) clampPageSize(size int) int {
	cfg := s.pageSize
	if cfg.Default <= 0 {
		cfg = DefaultPageSize
	}
	return cfg.Clamp(size)
}

// VerifyActionChain walks a session's history and checks every link and,
// when a keyring is configured, every signature.
func (s *Store) VerifyActionChain(ctx context.Context, sessionID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	var records []storage.ActionRecord
	var afterSeq int64
	for {
		page, err := s.ListActions(ctx, sessionID, storage.ListActionsOptions{AfterSeq: afterSeq, PageSize: s.pageSize.Max})
		if err != nil {
			return fmt.Errorf("list actions session_id=%s: %w", sessionID, err)
		}
		for _, record := range page.Actions {
			if record.Seq != afterSeq+1 {
				return fmt.Errorf("action sequence gap session_id=%s expected=%d got=%d", sessionID, afterSeq+1, record.Seq)
			}
			afterSeq = record.Seq
		}
		records = append(records, page.Actions...)
		if page.NextAfterSeq == 0 {
			break
		}
	}

	if err := integrity.VerifyChain(records, s.keyring); err != nil {
		return fmt.Errorf("verify action chain session_id=%s: %w", sessionID, err)
	}
	return nil
}

func scanAction(row rowScanner) (storage.ActionRecord, error) {
	var (
		record    storage.ActionRecord
		createdAt int64
	)
	if err := row.Scan(
		&record.SessionID,
		&record.Seq,
		&record.PlayerID,
		&record.ActionType,
		&record.CardID,
		&record.SourceZone,
		&record.TargetZone,
		&record.FromVersion,
		&record.ToVersion,
		&record.PayloadJSON,
		&createdAt,
		&record.PrevHash,
		&record.ChainHash,
		&record.Signature,
		&record.SignatureKeyID,
	); err != nil {
		return storage.ActionRecord{}, fmt.Errorf("scan action: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
