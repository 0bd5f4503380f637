package usecase

import (
	"context"
	"testing"

	"github.com/financeapp/otpgate/internal/otp/entity"
)

func TestPasswordForgotUnknownEmailIsSilent(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	err := f.uc.PasswordForgot(context.Background(), PasswordForgotInput{Email: "ghost@x.com"})

	// Assert
	if err != nil {
		t.Fatalf("expected constant success response, got %v", err)
	}
	if len(f.repo.records) != 0 {
		t.Fatalf("expected no record for an unknown email")
	}
	if len(f.messaging.events) != 0 {
		t.Fatalf("expected no dispatch for an unknown email")
	}
}

func TestPasswordForgotInactiveAccountIsSilent(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.repo.accounts = append(f.repo.accounts, &entity.Account{
		ID: 7, Email: "a@x.com", Status: entity.AccountStatusInactive,
	})

	// Act
	err := f.uc.PasswordForgot(context.Background(), PasswordForgotInput{Email: "a@x.com"})

	// Assert
	if err != nil {
		t.Fatalf("expected constant success response, got %v", err)
	}
	if len(f.repo.records) != 0 {
		t.Fatalf("expected no record for an inactive account")
	}
}

func TestPasswordResetEndToEnd(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.repo.accounts = append(f.repo.accounts, &entity.Account{
		ID: 7, Email: "a@x.com", Status: entity.AccountStatusActive,
	})

	if err := f.uc.PasswordForgot(context.Background(), PasswordForgotInput{Email: "A@X.com"}); err != nil {
		t.Fatalf("password forgot failed: %v", err)
	}

	out, err := f.uc.Verify(context.Background(), VerifyInput{
		Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "123456",
	})
	if err != nil || out.Outcome != entity.OutcomeOK {
		t.Fatalf("verify failed: outcome=%v err=%v", out, err)
	}

	// Act
	err = f.uc.PasswordReset(context.Background(), PasswordResetInput{
		Identifier:  "a@x.com",
		ResetToken:  out.ResetToken,
		NewPassword: "N3wSecret!pass",
	})

	// Assert
	if err != nil {
		t.Fatalf("password reset failed: %v", err)
	}

	stored, ok := f.repo.passwords[7]
	if !ok {
		t.Fatalf("expected credential to be updated")
	}
	if !f.credential.Verify(stored, "N3wSecret!pass") {
		t.Fatalf("stored credential hash does not match the new password")
	}
	if f.repo.records[0].State != entity.StateConsumed {
		t.Fatalf("expected record Consumed after reset, got %s", f.repo.records[0].State)
	}

	// Replaying the token must not change the credential again.
	err = f.uc.PasswordReset(context.Background(), PasswordResetInput{
		Identifier:  "a@x.com",
		ResetToken:  out.ResetToken,
		NewPassword: "Another!pass1",
	})
	assertUnauthorized(t, err)
}

func TestPasswordResetUnknownIdentifierLooksLikeBadToken(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	err := f.uc.PasswordReset(context.Background(), PasswordResetInput{
		Identifier:  "ghost@x.com",
		ResetToken:  "whatever",
		NewPassword: "N3wSecret!pass",
	})

	// Assert: identical to the wrong-token error, so the endpoint cannot be
	// used to probe registered identifiers.
	assertUnauthorized(t, err)
}

func TestSendUnknownIdentifierIsSilent(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	err := f.uc.Send(context.Background(), SendInput{
		Identifier: "+62 812 3456 7890",
		Purpose:    entity.PurposePhoneVerify,
		Channel:    entity.ChannelSMS,
	})

	// Assert
	if err != nil {
		t.Fatalf("expected constant success response, got %v", err)
	}
	if len(f.repo.records) != 0 {
		t.Fatalf("expected no record for an unknown identifier")
	}
}

func TestSendIssuesForRegisteredPhone(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.repo.accounts = append(f.repo.accounts, &entity.Account{
		ID: 9, Email: "b@x.com", PhoneE164: "+6281234567890", Status: entity.AccountStatusActive,
	})

	// Act
	err := f.uc.Send(context.Background(), SendInput{
		Identifier: "+62 8123 456 7890",
		Purpose:    entity.PurposePhoneVerify,
		Channel:    entity.ChannelSMS,
	})

	// Assert
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(f.repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(f.repo.records))
	}
	if f.repo.records[0].Identifier != "+6281234567890" {
		t.Fatalf("expected normalized phone identifier, got %q", f.repo.records[0].Identifier)
	}
	if f.repo.records[0].Channel != entity.ChannelSMS {
		t.Fatalf("expected sms channel, got %s", f.repo.records[0].Channel)
	}
}
