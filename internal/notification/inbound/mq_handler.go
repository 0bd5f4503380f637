package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/financeapp/otpgate/internal/notification/usecase"
	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/messaging"
	"github.com/financeapp/otpgate/internal/pkg/uid"
	"github.com/financeapp/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	for i := range headers {
		if headers[i].Key == keyOfCorrelationID {
			return instrument.SetCorrelationID(ctx, string(headers[i].Value))
		}
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) OtpIssuedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OtpIssuedNotification")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: otp issued notification", "record_id", peekRecordID(body))

	var payload event.OtpIssuedMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp issued notification", "error", err)
		return nil
	}

	if err := h.uc.DeliverOtp(ctx, usecase.DeliverOtpInput{
		Identifier: payload.Identifier,
		Channel:    payload.Channel,
		Subject:    payload.Subject,
		Message:    payload.Message,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to deliver otp", "record_id", payload.RecordID, "error", err)
		return err
	}

	return nil
}

// peekRecordID extracts the record ID for logging without exposing the code
// carried in the message body.
func peekRecordID(body []byte) int64 {
	var peek struct {
		RecordID int64 `json:"record_id"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return 0
	}
	return peek.RecordID
}
