package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
)

type ConsumeInput struct {
	Identifier string         `validate:"required"`
	Purpose    entity.Purpose `validate:"required"`
	ResetToken string         `validate:"required"`
}

// Consume redeems a verified record's reset token exactly once.
//
// The apply callback runs inside the same database transaction as the
// transition to Consumed; if it fails, the record stays Verified and the
// token remains redeemable. The redemption window is the remaining TTL from
// issuance, never a fresh timer.
func (s *Usecase) Consume(ctx context.Context, in ConsumeInput, apply ApplyFunc) (bool, error) {
	ctx, span := s.startSpan(ctx, "Consume")
	defer span.End()

	in.Identifier = normalizeIdentifier(in.Identifier)

	if err := s.validator.Validate(in); err != nil {
		return false, goerror.NewInvalidInput(err)
	}
	if in.Purpose.IsUnknown() {
		return false, goerror.NewInvalidInput(nil, "purpose", "purpose is not recognized")
	}

	tokenHash, err := s.hmac.Hash(in.ResetToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash reset token", "error", err)
		return false, goerror.NewServer(err)
	}

	now := s.clock.Now()

	err = s.repoDB.ConsumeToken(ctx, in.Identifier, in.Purpose, string(tokenHash), func(rec *entity.Record, cred CredentialWriter) error {
		if now.After(rec.ExpiresAt) {
			return entity.ErrExpired
		}
		if apply == nil {
			return nil
		}
		return apply(ctx, cred)
	})
	if errors.Is(err, goerror.ErrNotFound) || errors.Is(err, entity.ErrInvalidToken) {
		return false, goerror.NewBusiness("Invalid or already used reset token", goerror.CodeUnauthorized)
	}
	if errors.Is(err, entity.ErrExpired) {
		return false, goerror.NewBusiness("Reset token has expired", goerror.CodeUnauthorized)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume token", "identifier", in.Identifier, "purpose", in.Purpose.String(), "error", err)
		return false, goerror.NewServer(err)
	}

	return true, nil
}
