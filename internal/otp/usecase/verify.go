package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
)

type VerifyInput struct {
	Identifier string         `validate:"required"`
	Purpose    entity.Purpose `validate:"required"`
	Code       string         `validate:"required,numeric"`
}

type VerifyOutput struct {
	Outcome    entity.VerifyOutcome
	ResetToken string // set only when Outcome is OK
}

// Verify checks the submitted code against the active record for the pair.
//
// Expiry is decided before the attempt ceiling, and the ceiling before the
// code comparison, so an exhausted record can never yield a late OK. Every
// transition is persisted before the outcome is returned.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	in.Identifier = normalizeIdentifier(in.Identifier)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	if in.Purpose.IsUnknown() {
		return nil, goerror.NewInvalidInput(nil, "purpose", "purpose is not recognized")
	}
	// Code length follows the configured generator, not a fixed tag.
	if len(in.Code) != s.codeLength() {
		return nil, goerror.NewInvalidInput(nil, "code", fmt.Sprintf("code must be %d digits", s.codeLength()))
	}

	now := s.clock.Now()
	maxAttempts := s.maxAttempts()
	out := &VerifyOutput{Outcome: entity.OutcomeUnknown}

	err := s.repoDB.MutateActive(ctx, in.Identifier, in.Purpose, func(rec *entity.Record) error {
		if now.After(rec.ExpiresAt) {
			rec.State = entity.StateExpired
			out.Outcome = entity.OutcomeExpired
			return nil
		}

		if rec.Attempts >= maxAttempts {
			rec.State = entity.StateExhausted
			out.Outcome = entity.OutcomeExhausted
			return nil
		}

		rec.Attempts++
		rec.LastAttemptAt = &now

		if !s.hmac.Verify(rec.CodeHash, in.Code) {
			out.Outcome = entity.OutcomeInvalidCode
			return nil
		}

		token, err := s.generator.Token()
		if err != nil {
			return err
		}
		tokenHash, err := s.hmac.Hash(token)
		if err != nil {
			return err
		}

		rec.State = entity.StateVerified
		rec.ResetTokenHash = string(tokenHash)
		out.Outcome = entity.OutcomeOK
		out.ResetToken = token
		return nil
	})
	if errors.Is(err, goerror.ErrNotFound) {
		out.Outcome = entity.OutcomeNotFound
		return out, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo mutate active record", "identifier", in.Identifier, "purpose", in.Purpose.String(), "error", err)
		return nil, goerror.NewServer(err)
	}

	return out, nil
}
