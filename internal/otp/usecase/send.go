package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
)

type SendInput struct {
	Identifier string         `validate:"required"`
	Purpose    entity.Purpose `validate:"required"`
	Channel    entity.Channel `validate:"required"`
}

// Send issues a code for a caller-supplied identifier after checking that an
// account owns it. Unknown identifiers return success without any write so
// the endpoint cannot be used to probe which contacts are registered.
func (s *Usecase) Send(ctx context.Context, in SendInput) error {
	ctx, span := s.startSpan(ctx, "Send")
	defer span.End()

	in.Identifier = normalizeIdentifier(in.Identifier)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}
	if in.Purpose.IsUnknown() {
		return goerror.NewInvalidInput(nil, "purpose", "purpose is not recognized")
	}

	account, err := s.repoDB.GetAccountByIdentifier(ctx, in.Identifier)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "otp requested for unknown identifier", "identifier", in.Identifier, "purpose", in.Purpose.String())
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by identifier", "identifier", in.Identifier, "error", err)
		return goerror.NewServer(err)
	}

	if account.Status != entity.AccountStatusActive {
		slog.WarnContext(ctx, "otp requested for ineligible account", "account_id", account.ID, "status", account.Status.String())
		return nil
	}

	return s.Issue(ctx, IssueInput{
		Identifier: in.Identifier,
		Purpose:    in.Purpose,
		Channel:    in.Channel,
	})
}
