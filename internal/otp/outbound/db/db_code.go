package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/otp/usecase"
)

const recordColumns = `id, identifier, purpose, channel, code_hash, state, attempts,
	COALESCE(reset_token_hash, ''), issued_at, expires_at, last_sent_at, last_attempt_at`

func scanRecord(row pgx.Row) (*entity.Record, error) {
	var rec entity.Record
	err := row.Scan(
		&rec.ID,
		&rec.Identifier,
		&rec.Purpose,
		&rec.Channel,
		&rec.CodeHash,
		&rec.State,
		&rec.Attempts,
		&rec.ResetTokenHash,
		&rec.IssuedAt,
		&rec.ExpiresAt,
		&rec.LastSentAt,
		&rec.LastAttemptAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *DB) rollback(ctx context.Context, tx pgx.Tx) {
	if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
		slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
	}
}

const getLatestRecordForUpdate = `
SELECT ` + recordColumns + `
FROM otp_codes
WHERE identifier = $1 AND purpose = $2
ORDER BY issued_at DESC
LIMIT 1
FOR UPDATE
`

const supersedeActiveRecords = `
UPDATE otp_codes
SET state = $3, reset_token_hash = NULL
WHERE identifier = $1 AND purpose = $2 AND state IN ($4, $5)
`

const insertRecord = `
INSERT INTO otp_codes (
	id, identifier, purpose, channel, code_hash, state, attempts,
	issued_at, expires_at, last_sent_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// IssueCode serializes issuance per (identifier, purpose) on the latest row's
// lock: fn decides against the locked record, then every non-terminal record
// is superseded and the record fn returned is inserted, all in one commit.
func (s *DB) IssueCode(
	ctx context.Context,
	identifier string,
	purpose entity.Purpose,
	fn func(latest *entity.Record) (*entity.Record, error),
) (err error) {
	ctx, span := s.startSpan(ctx, "IssueCode")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer s.rollback(ctx, tx)

	latest, err := scanRecord(tx.QueryRow(ctx, getLatestRecordForUpdate, identifier, purpose))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return s.mapError(err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		latest = nil
	}

	rec, err := fn(latest)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, supersedeActiveRecords,
		identifier, purpose, entity.StateSuperseded, entity.StateIssued, entity.StateVerified,
	); err != nil {
		return s.mapError(err)
	}

	if _, err = tx.Exec(ctx, insertRecord,
		rec.ID, rec.Identifier, rec.Purpose, rec.Channel, rec.CodeHash,
		rec.State, rec.Attempts, rec.IssuedAt, rec.ExpiresAt, rec.LastSentAt,
	); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}

const getActiveRecordForUpdate = `
SELECT ` + recordColumns + `
FROM otp_codes
WHERE identifier = $1 AND purpose = $2 AND state = $3
FOR UPDATE
`

const updateRecordTransition = `
UPDATE otp_codes
SET state = $2, attempts = $3, reset_token_hash = NULLIF($4, ''), last_attempt_at = $5
WHERE id = $1
`

// MutateActive locks the single Issued record for the pair, lets fn mutate it,
// and persists the transition before committing.
func (s *DB) MutateActive(
	ctx context.Context,
	identifier string,
	purpose entity.Purpose,
	fn func(rec *entity.Record) error,
) (err error) {
	ctx, span := s.startSpan(ctx, "MutateActive")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer s.rollback(ctx, tx)

	rec, err := scanRecord(tx.QueryRow(ctx, getActiveRecordForUpdate, identifier, purpose, entity.StateIssued))
	if err != nil {
		return s.mapError(err)
	}

	if err = fn(rec); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, updateRecordTransition,
		rec.ID, rec.State, rec.Attempts, rec.ResetTokenHash, rec.LastAttemptAt,
	); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}

const getVerifiedRecordForUpdate = `
SELECT ` + recordColumns + `
FROM otp_codes
WHERE identifier = $1 AND purpose = $2 AND state = $3 AND reset_token_hash = $4
FOR UPDATE
`

const consumeRecord = `
UPDATE otp_codes
SET state = $2, reset_token_hash = NULL
WHERE id = $1
`

// ConsumeToken locks the Verified record matching the token hash, runs fn with
// a transaction-bound credential writer, and marks the record Consumed. Any
// error from fn rolls back both the transition and fn's own writes.
func (s *DB) ConsumeToken(
	ctx context.Context,
	identifier string,
	purpose entity.Purpose,
	tokenHash string,
	fn func(rec *entity.Record, cred usecase.CredentialWriter) error,
) (err error) {
	ctx, span := s.startSpan(ctx, "ConsumeToken")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer s.rollback(ctx, tx)

	rec, err := scanRecord(tx.QueryRow(ctx, getVerifiedRecordForUpdate,
		identifier, purpose, entity.StateVerified, tokenHash,
	))
	if err != nil {
		return s.mapError(err)
	}

	if err = fn(rec, txCredentialWriter{tx: tx}); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, consumeRecord, rec.ID, entity.StateConsumed); err != nil {
		return s.mapError(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return s.mapError(err)
	}

	return nil
}
