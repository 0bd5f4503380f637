package usecase

import (
	"context"
	"log/slog"

	"github.com/financeapp/otpgate/internal/pkg/mail"
)

type DeliverOtpInput struct {
	Identifier string `validate:"required"`
	Channel    string `validate:"required,oneof=email sms"`
	Subject    string `validate:"required"`
	Message    string `validate:"required"`
}

// DeliverOtp sends the rendered code message to the contact over the channel
// it was issued for.
func (s *Usecase) DeliverOtp(ctx context.Context, in DeliverOtpInput) error {
	ctx, span := s.startSpan(ctx, "DeliverOtp")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	switch in.Channel {
	case "sms":
		if err := s.repoSMS.Send(ctx, in.Identifier, in.Message); err != nil {
			slog.ErrorContext(ctx, "failed to send sms", "phone", in.Identifier, "error", err)
			return err
		}
	default:
		if err := s.repoMail.Send(ctx, mail.Message{
			To:       []string{in.Identifier},
			Subject:  in.Subject,
			TextBody: in.Message,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to send email", "email", in.Identifier, "error", err)
			return err
		}
	}

	return nil
}
