package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
	"github.com/financeapp/otpgate/internal/pkg/idempotency"
)

func TestIssueCreatesRecordAndPublishes(t *testing.T) {
	// Arrange
	f := newFixture(t)
	in := IssueInput{Identifier: "A@X.com", Purpose: entity.PurposePasswordReset, Channel: entity.ChannelEmail}

	// Act
	err := f.uc.Issue(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if len(f.repo.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(f.repo.records))
	}

	rec := f.repo.records[0]
	if rec.Identifier != "a@x.com" {
		t.Fatalf("expected normalized identifier, got %q", rec.Identifier)
	}
	if rec.State != entity.StateIssued {
		t.Fatalf("expected state Issued, got %s", rec.State)
	}
	if rec.Attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", rec.Attempts)
	}
	if !f.hmac.Verify(rec.CodeHash, "123456") {
		t.Fatalf("stored code hash does not match the generated code")
	}
	if got, want := rec.ExpiresAt, f.clock.Now().Add(5*time.Minute); !got.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, got)
	}

	if len(f.messaging.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(f.messaging.events))
	}
	if f.messaging.events[0].RecordID != rec.ID {
		t.Fatalf("published event references record %d, want %d", f.messaging.events[0].RecordID, rec.ID)
	}
	if len(f.idemp.completed) != 1 {
		t.Fatalf("expected issue lock marked completed")
	}
}

func TestIssueWithinCooldownIsThrottled(t *testing.T) {
	// Arrange
	f := newFixture(t)
	in := IssueInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Channel: entity.ChannelEmail}
	if err := f.uc.Issue(context.Background(), in); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	f.clock.Advance(30 * time.Second)

	// Act
	err := f.uc.Issue(context.Background(), in)

	// Assert
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected business error, got %v", err)
	}
	if gerr.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", gerr.StatusCode())
	}
	if len(f.repo.records) != 1 {
		t.Fatalf("expected no new record during cooldown, got %d", len(f.repo.records))
	}
	if len(f.idemp.released) != 1 {
		t.Fatalf("expected issue lock released after throttled issue")
	}
}

func TestIssueLockHeldElsewhereIsThrottled(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.idemp.acquireState = idempotency.StateInProgress
	in := IssueInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Channel: entity.ChannelEmail}

	// Act
	err := f.uc.Issue(context.Background(), in)

	// Assert
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected business error, got %v", err)
	}
	if gerr.StatusCode() != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", gerr.StatusCode())
	}
	if len(f.repo.records) != 0 {
		t.Fatalf("expected no record written while lock held, got %d", len(f.repo.records))
	}
}

func TestIssueAfterCooldownSupersedesPrevious(t *testing.T) {
	// Arrange
	f := newFixture(t)
	in := IssueInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Channel: entity.ChannelEmail}
	if err := f.uc.Issue(context.Background(), in); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	f.clock.Advance(61 * time.Second)

	// Act
	err := f.uc.Issue(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}
	if len(f.repo.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(f.repo.records))
	}
	if f.repo.records[0].State != entity.StateSuperseded {
		t.Fatalf("expected first record Superseded, got %s", f.repo.records[0].State)
	}
	if f.repo.records[1].State != entity.StateIssued {
		t.Fatalf("expected second record Issued, got %s", f.repo.records[1].State)
	}
}

func TestIssueSupersedingVerifiedRecordClearsToken(t *testing.T) {
	// Arrange
	f := newFixture(t)
	in := IssueInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Channel: entity.ChannelEmail}
	if err := f.uc.Issue(context.Background(), in); err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	out, err := f.uc.Verify(context.Background(), VerifyInput{
		Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Code: "123456",
	})
	if err != nil || out.Outcome != entity.OutcomeOK {
		t.Fatalf("verify failed: outcome=%v err=%v", out, err)
	}
	if f.repo.records[0].ResetTokenHash == "" {
		t.Fatalf("expected a token hash on the verified record")
	}
	f.clock.Advance(61 * time.Second)

	// Act
	err = f.uc.Issue(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}
	old := f.repo.records[0]
	if old.State != entity.StateSuperseded {
		t.Fatalf("expected first record Superseded, got %s", old.State)
	}
	if old.ResetTokenHash != "" {
		t.Fatalf("superseded record must not keep a token hash, got %q", old.ResetTokenHash)
	}
}

func TestIssueUnknownPurposeRejected(t *testing.T) {
	// Arrange
	f := newFixture(t)
	in := IssueInput{Identifier: "a@x.com", Purpose: entity.PurposeUnknown, Channel: entity.ChannelEmail}

	// Act
	err := f.uc.Issue(context.Background(), in)

	// Assert
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if gerr.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", gerr.StatusCode())
	}
	if len(f.repo.records) != 0 {
		t.Fatalf("expected no record for unknown purpose")
	}
}

func TestIssuePublishFailureDoesNotUndoRecord(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.messaging.err = errors.New("broker down")
	in := IssueInput{Identifier: "a@x.com", Purpose: entity.PurposePasswordReset, Channel: entity.ChannelEmail}

	// Act
	err := f.uc.Issue(context.Background(), in)

	// Assert
	if err != nil {
		t.Fatalf("issue should succeed despite publish failure, got %v", err)
	}
	if len(f.repo.records) != 1 {
		t.Fatalf("expected the record to stay persisted, got %d", len(f.repo.records))
	}
}
