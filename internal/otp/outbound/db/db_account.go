package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/financeapp/otpgate/internal/otp/entity"
)

const getAccountByEmail = `
SELECT id, email, COALESCE(phone_e164, ''), status
FROM accounts
WHERE email = $1 AND deleted_at IS NULL
`

func (s *DB) GetAccountByEmail(ctx context.Context, email string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByEmail")
	defer func() { s.endSpan(span, err) }()

	var acc entity.Account
	err = s.conn.QueryRow(ctx, getAccountByEmail, email).
		Scan(&acc.ID, &acc.Email, &acc.PhoneE164, &acc.Status)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &acc, nil
}

const getAccountByIdentifier = `
SELECT id, email, COALESCE(phone_e164, ''), status
FROM accounts
WHERE (email = $1 OR phone_e164 = $1) AND deleted_at IS NULL
`

// GetAccountByIdentifier resolves an account by email or E.164 phone number.
func (s *DB) GetAccountByIdentifier(ctx context.Context, identifier string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByIdentifier")
	defer func() { s.endSpan(span, err) }()

	var acc entity.Account
	err = s.conn.QueryRow(ctx, getAccountByIdentifier, identifier).
		Scan(&acc.ID, &acc.Email, &acc.PhoneE164, &acc.Status)
	if err != nil {
		return nil, s.mapError(err)
	}

	return &acc, nil
}

const updateAccountCredential = `
UPDATE accounts
SET password = $2, updated_at = NOW()
WHERE id = $1 AND deleted_at IS NULL
`

// txCredentialWriter applies credential changes on the transaction that is
// redeeming the reset token.
type txCredentialWriter struct {
	tx pgx.Tx
}

func (w txCredentialWriter) UpdateAccountCredential(ctx context.Context, accountID int64, credentialHash string) error {
	tag, err := w.tx.Exec(ctx, updateAccountCredential, accountID, credentialHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
