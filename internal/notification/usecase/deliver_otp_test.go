package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/mail"
	"github.com/financeapp/otpgate/internal/pkg/validator"
)

type fakeMail struct {
	sent []mail.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeSMS struct {
	phones   []string
	messages []string
}

func (f *fakeSMS) Send(_ context.Context, phone, message string) error {
	f.phones = append(f.phones, phone)
	f.messages = append(f.messages, message)
	return nil
}

func newTestUsecase(t *testing.T) (*Usecase, *fakeMail, *fakeSMS) {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}

	fm := &fakeMail{}
	fs := &fakeSMS{}
	uc := NewNotification(Dependency{
		RepoMail:   fm,
		RepoSMS:    fs,
		Validator:  v,
		Instrument: instrument.NewNoop(),
	})
	return uc, fm, fs
}

func TestDeliverOtpOverEmail(t *testing.T) {
	// Arrange
	uc, fm, fs := newTestUsecase(t)
	in := DeliverOtpInput{
		Identifier: "a@x.com",
		Channel:    "email",
		Subject:    "Your OTP for password reset",
		Message:    "Your OTP is: 123456 (valid for 5 minutes)",
	}

	// Act
	err := uc.DeliverOtp(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if len(fm.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(fm.sent))
	}
	if len(fs.phones) != 0 {
		t.Fatalf("expected no sms for the email channel")
	}

	msg := fm.sent[0]
	if len(msg.To) != 1 || msg.To[0] != "a@x.com" {
		t.Fatalf("unexpected recipients: %v", msg.To)
	}
	if msg.Subject != in.Subject || msg.TextBody != in.Message {
		t.Fatalf("rendered content was not passed through")
	}
}

func TestDeliverOtpOverSMS(t *testing.T) {
	// Arrange
	uc, fm, fs := newTestUsecase(t)
	in := DeliverOtpInput{
		Identifier: "+6281234567890",
		Channel:    "sms",
		Subject:    "Your OTP for phone verification",
		Message:    "Your OTP is: 123456 (valid for 5 minutes)",
	}

	// Act
	err := uc.DeliverOtp(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if len(fs.phones) != 1 || fs.phones[0] != "+6281234567890" {
		t.Fatalf("expected sms to the phone number, got %v", fs.phones)
	}
	if len(fm.sent) != 0 {
		t.Fatalf("expected no email for the sms channel")
	}
}

func TestDeliverOtpInvalidChannelDropped(t *testing.T) {
	// Arrange
	uc, fm, fs := newTestUsecase(t)
	in := DeliverOtpInput{
		Identifier: "a@x.com",
		Channel:    "pigeon",
		Subject:    "s",
		Message:    "m",
	}

	// Act: malformed events are dropped, not requeued forever.
	err := uc.DeliverOtp(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("expected invalid input to be dropped silently, got %v", err)
	}
	if len(fm.sent) != 0 || len(fs.phones) != 0 {
		t.Fatalf("expected no delivery for an invalid event")
	}
}

func TestDeliverOtpPropagatesMailFailure(t *testing.T) {
	// Arrange
	uc, fm, _ := newTestUsecase(t)
	fm.err = errors.New("smtp unavailable")
	in := DeliverOtpInput{
		Identifier: "a@x.com",
		Channel:    "email",
		Subject:    "s",
		Message:    "m",
	}

	// Act
	err := uc.DeliverOtp(context.Background(), in)

	// Assert
	if err == nil {
		t.Fatalf("expected mail failure to surface for redelivery")
	}
}
