package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
)

func verifiedToken(t *testing.T, f *fixture, identifier string) string {
	t.Helper()
	issueFor(t, f, identifier)
	out, err := f.uc.Verify(context.Background(), VerifyInput{
		Identifier: identifier, Purpose: entity.PurposePasswordReset, Code: "123456",
	})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeOK {
		t.Fatalf("expected OK outcome, got %s", out.Outcome)
	}
	return out.ResetToken
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected business error, got %v", err)
	}
	if gerr.StatusCode() != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", gerr.StatusCode())
	}
}

func TestConsumeTokenExactlyOnce(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token := verifiedToken(t, f, "a@x.com")
	in := ConsumeInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, ResetToken: token}
	applied := 0

	// Act
	ok, err := f.uc.Consume(context.Background(), in, func(context.Context, CredentialWriter) error {
		applied++
		return nil
	})

	// Assert
	if err != nil || !ok {
		t.Fatalf("consume failed: ok=%v err=%v", ok, err)
	}
	if applied != 1 {
		t.Fatalf("expected apply to run once, ran %d times", applied)
	}
	if f.repo.records[0].State != entity.StateConsumed {
		t.Fatalf("expected state Consumed, got %s", f.repo.records[0].State)
	}
	if f.repo.records[0].ResetTokenHash != "" {
		t.Fatalf("expected token hash cleared after redemption")
	}

	// A second redemption of the same token must fail.
	ok, err = f.uc.Consume(context.Background(), in, nil)
	if ok {
		t.Fatalf("expected second consume to fail")
	}
	assertUnauthorized(t, err)
}

func TestConsumeApplyFailureKeepsTokenRedeemable(t *testing.T) {
	// Arrange
	f := newFixture(t)
	token := verifiedToken(t, f, "a@x.com")
	in := ConsumeInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, ResetToken: token}

	// Act
	ok, err := f.uc.Consume(context.Background(), in, func(context.Context, CredentialWriter) error {
		return errors.New("credential update failed")
	})

	// Assert
	if ok || err == nil {
		t.Fatalf("expected consume to fail when apply fails")
	}
	if f.repo.records[0].State != entity.StateVerified {
		t.Fatalf("expected state to remain Verified, got %s", f.repo.records[0].State)
	}

	// The token survives the rollback and can be redeemed again.
	ok, err = f.uc.Consume(context.Background(), in, nil)
	if err != nil || !ok {
		t.Fatalf("expected retry to succeed: ok=%v err=%v", ok, err)
	}
}

func TestConsumeExpiredToken(t *testing.T) {
	// Arrange: redemption shares the issuance TTL, it never gets a fresh timer.
	f := newFixture(t)
	token := verifiedToken(t, f, "a@x.com")
	f.clock.Advance(5*time.Minute + time.Second)
	in := ConsumeInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, ResetToken: token}

	// Act
	ok, err := f.uc.Consume(context.Background(), in, nil)

	// Assert
	if ok {
		t.Fatalf("expected consume to fail after expiry")
	}
	assertUnauthorized(t, err)
	if f.repo.records[0].State != entity.StateVerified {
		t.Fatalf("expected state unchanged on expired redemption, got %s", f.repo.records[0].State)
	}
}

func TestConsumeWrongToken(t *testing.T) {
	// Arrange
	f := newFixture(t)
	verifiedToken(t, f, "a@x.com")
	in := ConsumeInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, ResetToken: "bogus"}

	// Act
	ok, err := f.uc.Consume(context.Background(), in, nil)

	// Assert
	if ok {
		t.Fatalf("expected consume to fail for a wrong token")
	}
	assertUnauthorized(t, err)
}
