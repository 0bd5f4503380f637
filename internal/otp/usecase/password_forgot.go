package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
)

type PasswordForgotInput struct {
	Email string `validate:"required,email"`
}

// PasswordForgot starts the password reset flow over email.
//
// The response is identical whether or not the email belongs to an account.
func (s *Usecase) PasswordForgot(ctx context.Context, in PasswordForgotInput) error {
	ctx, span := s.startSpan(ctx, "PasswordForgot")
	defer span.End()

	in.Email = normalizeIdentifier(in.Email)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	account, err := s.repoDB.GetAccountByEmail(ctx, in.Email)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "password reset requested for unknown email", "email", in.Email)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by email", "email", in.Email, "error", err)
		return goerror.NewServer(err)
	}

	if account.Status != entity.AccountStatusActive {
		slog.WarnContext(ctx, "password reset requested for ineligible account", "account_id", account.ID, "status", account.Status.String())
		return nil
	}

	return s.Issue(ctx, IssueInput{
		Identifier: in.Email,
		Purpose:    entity.PurposePasswordReset,
		Channel:    entity.ChannelEmail,
	})
}
