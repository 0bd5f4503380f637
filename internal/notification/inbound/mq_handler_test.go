package inbound

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/financeapp/otpgate/internal/notification/usecase"
	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/messaging"
	"github.com/financeapp/otpgate/internal/shared/event"
)

type fakeUsecase struct {
	delivered []usecase.DeliverOtpInput
}

func (f *fakeUsecase) DeliverOtp(_ context.Context, in usecase.DeliverOtpInput) error {
	f.delivered = append(f.delivered, in)
	return nil
}

type fakeStringID struct{}

func (fakeStringID) Generate() string { return "test-correlation-id" }

type fakeMessage struct {
	body    []byte
	headers []messaging.Header
}

func (m *fakeMessage) Body() []byte                  { return m.body }
func (m *fakeMessage) Key() []byte                   { return nil }
func (m *fakeMessage) Headers() []messaging.Header   { return m.headers }
func (m *fakeMessage) Attributes() map[string]string { return nil }
func (m *fakeMessage) ID() string                    { return "" }
func (m *fakeMessage) Topic() string                 { return event.OtpIssuedDestination }
func (m *fakeMessage) Subject() string               { return "" }
func (m *fakeMessage) Timestamp() time.Time          { return time.Time{} }
func (m *fakeMessage) Ack(context.Context) error     { return nil }

func TestOtpIssuedNotificationDelivers(t *testing.T) {
	// Arrange
	fake := &fakeUsecase{}
	h := &MQHandler{uc: fake, uuid: fakeStringID{}, ins: instrument.NewNoop()}

	body, err := json.Marshal(event.OtpIssuedMessage{
		RecordID:   42,
		Identifier: "a@x.com",
		Purpose:    "password reset",
		Channel:    "email",
		Subject:    "Your OTP for password reset",
		Message:    "Your OTP is: 123456 (valid for 5 minutes)",
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	// Act
	err = h.OtpIssuedNotification(context.Background(), &fakeMessage{
		body:    body,
		headers: []messaging.Header{{Key: "cID", Value: []byte("abc")}},
	})

	// Assert
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(fake.delivered) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(fake.delivered))
	}
	got := fake.delivered[0]
	if got.Identifier != "a@x.com" || got.Channel != "email" {
		t.Fatalf("unexpected delivery input: %+v", got)
	}
}

func TestOtpIssuedNotificationDropsMalformedBody(t *testing.T) {
	// Arrange
	fake := &fakeUsecase{}
	h := &MQHandler{uc: fake, uuid: fakeStringID{}, ins: instrument.NewNoop()}

	// Act: a body that can never parse is acked, not redelivered forever.
	err := h.OtpIssuedNotification(context.Background(), &fakeMessage{body: []byte("{broken")})

	// Assert
	if err != nil {
		t.Fatalf("expected malformed message to be dropped, got %v", err)
	}
	if len(fake.delivered) != 0 {
		t.Fatalf("expected no delivery for a malformed message")
	}
}
