package db

import (
	"context"
	"time"

	"github.com/financeapp/otpgate/internal/otp/entity"
)

const expireOverdueRecords = `
UPDATE otp_codes
SET state = $2
WHERE state = $3 AND expires_at < $1
`

// ExpireOverdue moves Issued records past their TTL to Expired and returns
// how many rows changed.
func (s *DB) ExpireOverdue(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "ExpireOverdue")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, expireOverdueRecords, now, entity.StateExpired, entity.StateIssued)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}

const listTerminalRecords = `
SELECT ` + recordColumns + `
FROM otp_codes
WHERE state IN ($2, $3, $4, $5) AND issued_at < $1
ORDER BY issued_at
LIMIT $6
`

func (s *DB) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int32) (_ []entity.Record, err error) {
	ctx, span := s.startSpan(ctx, "ListTerminalBefore")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, listTerminalRecords, cutoff,
		entity.StateConsumed, entity.StateExpired, entity.StateExhausted, entity.StateSuperseded, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	records := make([]entity.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, s.mapError(err)
		}
		records = append(records, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, s.mapError(err)
	}

	return records, nil
}

const deleteRecordsByID = `
DELETE FROM otp_codes
WHERE id = ANY($1)
`

func (s *DB) DeleteRecords(ctx context.Context, ids []int64) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "DeleteRecords")
	defer func() { s.endSpan(span, err) }()

	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := s.conn.Exec(ctx, deleteRecordsByID, ids)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}
