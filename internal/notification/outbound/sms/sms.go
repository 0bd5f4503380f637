// Package sms delivers short text messages to phone numbers.
//
// The only driver today is Console, which writes the message to the log for
// development and test environments. A real gateway driver can replace it
// behind the same method set.
package sms

import (
	"context"
	"log/slog"

	"github.com/financeapp/otpgate/internal/pkg/instrument"
)

// Console logs messages instead of delivering them.
type Console struct {
	ins instrument.Instrumentation
}

func NewConsole(ins instrument.Instrumentation) *Console {
	return &Console{ins: ins}
}

func (c *Console) Send(ctx context.Context, phone, message string) error {
	ctx, span := c.ins.Tracer("notification.outbound.sms").Start(ctx, "Send")
	defer span.End()

	slog.InfoContext(ctx, "console sms delivery", "phone", phone, "message", message)
	return nil
}
