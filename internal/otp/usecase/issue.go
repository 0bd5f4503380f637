package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
	"github.com/financeapp/otpgate/internal/pkg/idempotency"
)

type IssueInput struct {
	Identifier string         `validate:"required"`
	Purpose    entity.Purpose `validate:"required"`
	Channel    entity.Channel `validate:"required"`
}

// Issue creates and dispatches a fresh code for the identifier and purpose.
//
// Any prior non-terminal record for the pair is superseded in the same
// transaction that inserts the new one. Dispatch failures are logged but do
// not undo the persisted record.
func (s *Usecase) Issue(ctx context.Context, in IssueInput) error {
	ctx, span := s.startSpan(ctx, "Issue")
	defer span.End()

	in.Identifier = normalizeIdentifier(in.Identifier)

	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}
	if in.Purpose.IsUnknown() {
		return goerror.NewInvalidInput(nil, "purpose", "purpose is not recognized")
	}

	cooldown := s.resendCooldown()

	// Cross-instance guard: identical requests racing across replicas
	// collapse here before touching the database. The row lock inside
	// IssueCode remains the authoritative serializer.
	idempKey := "otp:issue:" + in.Purpose.String() + ":" + in.Identifier
	state, err := s.idemp.Acquire(ctx, idempKey, cooldown)
	if err != nil {
		slog.WarnContext(ctx, "failed to acquire issue lock, falling through to database", "identifier", in.Identifier, "error", err)
	} else if state != idempotency.StateNone {
		return goerror.NewBusiness("Please wait before requesting a new code", goerror.CodeTooManyRequest)
	}

	code, err := s.generator.Code()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate code", "error", err)
		return goerror.NewServer(err)
	}

	codeHash, err := s.hmac.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash code", "error", err)
		return goerror.NewServer(err)
	}

	now := s.clock.Now()
	ttl := s.codeTTL()
	rec := &entity.Record{
		ID:         s.uid.Generate(),
		Identifier: in.Identifier,
		Purpose:    in.Purpose,
		Channel:    in.Channel,
		CodeHash:   string(codeHash),
		State:      entity.StateIssued,
		Attempts:   0,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
		LastSentAt: now,
	}

	err = s.repoDB.IssueCode(ctx, in.Identifier, in.Purpose, func(latest *entity.Record) (*entity.Record, error) {
		if latest != nil && now.Sub(latest.LastSentAt) < cooldown {
			return nil, entity.ErrThrottled
		}
		return rec, nil
	})
	if errors.Is(err, entity.ErrThrottled) {
		s.releaseIssueLock(ctx, idempKey)
		return goerror.NewBusiness("Please wait before requesting a new code", goerror.CodeTooManyRequest)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo issue code", "identifier", in.Identifier, "purpose", in.Purpose.String(), "error", err)
		s.releaseIssueLock(ctx, idempKey)
		return goerror.NewServer(err)
	}

	if err := s.idemp.MarkCompleted(ctx, idempKey, cooldown); err != nil {
		slog.WarnContext(ctx, "failed to mark issue lock completed", "identifier", in.Identifier, "error", err)
	}

	if err := s.repoMessaging.PublishOtpIssued(ctx, OtpIssuedEvent{
		RecordID:   rec.ID,
		Identifier: in.Identifier,
		Purpose:    in.Purpose,
		Channel:    in.Channel,
		Subject:    s.renderSubject(in.Purpose),
		Message:    s.renderMessage(code, ttl),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish otp issued", "record_id", rec.ID, "error", err)
	}

	return nil
}

// releaseIssueLock drops the lock after a failed issue so a retry is not
// blocked for the whole cooldown.
func (s *Usecase) releaseIssueLock(ctx context.Context, key string) {
	if err := s.idemp.Release(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to release issue lock", "key", key, "error", err)
	}
}
