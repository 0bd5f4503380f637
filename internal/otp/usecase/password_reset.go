package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
)

type PasswordResetInput struct {
	Identifier  string `validate:"required"`
	ResetToken  string `validate:"required"`
	NewPassword string `validate:"required,password"`
}

// PasswordReset redeems a reset token and replaces the account credential.
// The credential update and the token redemption commit or roll back together.
func (s *Usecase) PasswordReset(ctx context.Context, in PasswordResetInput) error {
	ctx, span := s.startSpan(ctx, "PasswordReset")
	defer span.End()

	in.Identifier = normalizeIdentifier(in.Identifier)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	account, err := s.repoDB.GetAccountByIdentifier(ctx, in.Identifier)
	if errors.Is(err, goerror.ErrNotFound) {
		// Same response as a bad token, so this path does not reveal
		// which identifiers have accounts.
		return goerror.NewBusiness("Invalid or already used reset token", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by identifier", "identifier", in.Identifier, "error", err)
		return goerror.NewServer(err)
	}

	newHash, err := s.credential.Hash(in.NewPassword)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash new password", "account_id", account.ID, "error", err)
		return goerror.NewServer(err)
	}

	_, err = s.Consume(ctx, ConsumeInput{
		Identifier: in.Identifier,
		Purpose:    entity.PurposePasswordReset,
		ResetToken: in.ResetToken,
	}, func(ctx context.Context, cred CredentialWriter) error {
		return cred.UpdateAccountCredential(ctx, account.ID, string(newHash))
	})
	return err
}
