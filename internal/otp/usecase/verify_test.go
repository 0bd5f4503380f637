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

func issueFor(t *testing.T, f *fixture, identifier string) {
	t.Helper()
	err := f.uc.Issue(context.Background(), IssueInput{
		Identifier: identifier,
		Purpose:    entity.PurposePasswordReset,
		Channel:    entity.ChannelEmail,
	})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
}

func TestVerifyCorrectCodeMintsToken(t *testing.T) {
	// Arrange
	f := newFixture(t)
	issueFor(t, f, "a@x.com")

	// Act
	out, err := f.uc.Verify(context.Background(), VerifyInput{
		Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "123456",
	})

	// Assert
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeOK {
		t.Fatalf("expected outcome OK, got %s", out.Outcome)
	}
	if out.ResetToken == "" {
		t.Fatalf("expected a reset token on success")
	}

	rec := f.repo.records[0]
	if rec.State != entity.StateVerified {
		t.Fatalf("expected state Verified, got %s", rec.State)
	}
	if rec.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", rec.Attempts)
	}
	if !f.hmac.Verify(rec.ResetTokenHash, out.ResetToken) {
		t.Fatalf("stored token hash does not match the returned token")
	}
}

func TestVerifyAgainAfterSuccessIsNotFound(t *testing.T) {
	// Arrange
	f := newFixture(t)
	issueFor(t, f, "a@x.com")
	in := VerifyInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "123456"}
	out, err := f.uc.Verify(context.Background(), in)
	if err != nil || out.Outcome != entity.OutcomeOK {
		t.Fatalf("first verify failed: outcome=%v err=%v", out, err)
	}

	// Act
	out, err = f.uc.Verify(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeNotFound {
		t.Fatalf("expected outcome NotFound, got %s", out.Outcome)
	}
	if rec := f.repo.records[0]; rec.State != entity.StateVerified || rec.Attempts != 1 {
		t.Fatalf("verified record must be untouched, got state=%s attempts=%d", rec.State, rec.Attempts)
	}
}

func TestVerifyCodeLengthFollowsConfig(t *testing.T) {
	// Arrange
	f := newFixtureWithConfig(t, testConfigYAML+`
    code_length: 8
`)
	f.generator.code = "12345678"
	issueFor(t, f, "a@x.com")
	in := VerifyInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "123456"}

	// Act
	_, err := f.uc.Verify(context.Background(), in)

	// Assert
	var gerr *goerror.Error
	if !errors.As(err, &gerr) || gerr.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected invalid input for a 6-digit code under length 8, got %v", err)
	}

	in.Code = "12345678"
	out, err := f.uc.Verify(context.Background(), in)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeOK {
		t.Fatalf("expected outcome OK for the configured length, got %s", out.Outcome)
	}
}

func TestVerifyWrongCodeIncrementsAttempts(t *testing.T) {
	// Arrange
	f := newFixture(t)
	issueFor(t, f, "a@x.com")

	// Act
	out, err := f.uc.Verify(context.Background(), VerifyInput{
		Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "000000",
	})

	// Assert
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeInvalidCode {
		t.Fatalf("expected outcome INVALID_CODE, got %s", out.Outcome)
	}

	rec := f.repo.records[0]
	if rec.State != entity.StateIssued {
		t.Fatalf("expected state to remain Issued, got %s", rec.State)
	}
	if rec.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", rec.Attempts)
	}
	if rec.LastAttemptAt == nil || !rec.LastAttemptAt.Equal(f.clock.Now()) {
		t.Fatalf("expected last attempt timestamp to be recorded")
	}
}

func TestVerifyExpiredCodeEvenWhenCorrect(t *testing.T) {
	// Arrange
	f := newFixture(t)
	issueFor(t, f, "a@x.com")
	f.clock.Advance(5*time.Minute + time.Second)

	// Act
	out, err := f.uc.Verify(context.Background(), VerifyInput{
		Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "123456",
	})

	// Assert
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeExpired {
		t.Fatalf("expected outcome EXPIRED, got %s", out.Outcome)
	}
	if f.repo.records[0].State != entity.StateExpired {
		t.Fatalf("expected state Expired, got %s", f.repo.records[0].State)
	}
}

func TestVerifyExhaustionAfterMaxAttempts(t *testing.T) {
	// Arrange
	f := newFixture(t)
	issueFor(t, f, "a@x.com")
	in := VerifyInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "000000"}

	// Act: the max-attempts-th wrong submission still reports its own outcome.
	for i := 0; i < 5; i++ {
		out, err := f.uc.Verify(context.Background(), in)
		if err != nil {
			t.Fatalf("verify attempt %d failed: %v", i+1, err)
		}
		if out.Outcome != entity.OutcomeInvalidCode {
			t.Fatalf("attempt %d: expected INVALID_CODE, got %s", i+1, out.Outcome)
		}
	}

	// The next call is rejected before comparison, even with the right code.
	in.Code = "123456"
	out, err := f.uc.Verify(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeExhausted {
		t.Fatalf("expected outcome EXHAUSTED, got %s", out.Outcome)
	}
	if f.repo.records[0].State != entity.StateExhausted {
		t.Fatalf("expected state Exhausted, got %s", f.repo.records[0].State)
	}
}

func TestVerifyNoActiveRecord(t *testing.T) {
	// Arrange
	f := newFixture(t)

	// Act
	out, err := f.uc.Verify(context.Background(), VerifyInput{
		Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "123456",
	})

	// Assert
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeNotFound {
		t.Fatalf("expected outcome NOT_FOUND, got %s", out.Outcome)
	}
}

func TestVerifySupersededRecordIsInert(t *testing.T) {
	// Arrange
	f := newFixture(t)
	issueFor(t, f, "a@x.com")
	f.clock.Advance(61 * time.Second)
	issueFor(t, f, "a@x.com")

	// Only the fresh record's code verifies; superseded ones never match.
	f.repo.records[1].CodeHash = "other"

	// Act
	out, err := f.uc.Verify(context.Background(), VerifyInput{
		Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "123456",
	})

	// Assert
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.Outcome != entity.OutcomeInvalidCode {
		t.Fatalf("expected INVALID_CODE against the active record only, got %s", out.Outcome)
	}
	if f.repo.records[0].State != entity.StateSuperseded {
		t.Fatalf("superseded record must not change state, got %s", f.repo.records[0].State)
	}
}
