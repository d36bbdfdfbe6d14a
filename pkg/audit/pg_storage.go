package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgDB is the subset of pgxpool.Pool the storage needs.
type pgDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStorage persists audit records in the audit_log table.
type PGStorage struct {
	db pgDB
}

// NewPGStorage returns a Storage backed by PostgreSQL.
func NewPGStorage(db pgDB) *PGStorage {
	if db == nil {
		panic("audit: pg connection cannot be nil")
	}
	return &PGStorage{db: db}
}

const pgStoreQuery = `
INSERT INTO audit_log (id, action, actor, target_user_id, old_value, new_value,
                       justification, forced, overridden_reason, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

func (s *PGStorage) Store(ctx context.Context, record Record) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return errors.Join(ErrRecordValidation, err)
	}

	var id string
	err = s.db.QueryRow(ctx, pgStoreQuery,
		record.ID, record.Action, record.Actor, record.TargetUserID,
		record.OldValue, record.NewValue, record.Justification,
		record.Forced, record.OverriddenReason, metadata, record.CreatedAt,
	).Scan(&id)
	if err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

func (s *PGStorage) Query(ctx context.Context, criteria Criteria) ([]Record, error) {
	query := `SELECT id, action, actor, target_user_id, old_value, new_value,
	                 justification, forced, overridden_reason, metadata, created_at
	          FROM audit_log WHERE 1=1`
	var args []any

	appendArg := func(clause string, value any) {
		args = append(args, value)
		query += fmt.Sprintf(clause, len(args))
	}

	if criteria.Actor != "" {
		appendArg(" AND actor = $%d", criteria.Actor)
	}
	if criteria.TargetUserID != "" {
		appendArg(" AND target_user_id = $%d", criteria.TargetUserID)
	}
	if criteria.Action != "" {
		appendArg(" AND action = $%d", criteria.Action)
	}
	if criteria.ForcedOnly {
		query += " AND forced"
	}
	if !criteria.Since.IsZero() {
		appendArg(" AND created_at >= $%d", criteria.Since)
	}
	if !criteria.Until.IsZero() {
		appendArg(" AND created_at <= $%d", criteria.Until)
	}
	query += " ORDER BY created_at DESC"
	if criteria.Limit > 0 {
		appendArg(" LIMIT $%d", criteria.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var metadata []byte
		if err := rows.Scan(&r.ID, &r.Action, &r.Actor, &r.TargetUserID,
			&r.OldValue, &r.NewValue, &r.Justification,
			&r.Forced, &r.OverriddenReason, &metadata, &r.CreatedAt); err != nil {
			return nil, errors.Join(ErrStorageNotAvailable, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				return nil, errors.Join(ErrStorageNotAvailable, err)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	return records, nil
}
