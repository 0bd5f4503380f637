package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/financeapp/otpgate/internal/otp/entity"
)

func TestSweepExpiresOverdueRecords(t *testing.T) {
	// Arrange
	f := newFixture(t)
	issueFor(t, f, "a@x.com")
	f.clock.Advance(6 * time.Minute)

	// Act
	if err := f.uc.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	// Assert
	if f.repo.records[0].State != entity.StateExpired {
		t.Fatalf("expected overdue record Expired, got %s", f.repo.records[0].State)
	}
	if len(f.storage.puts) != 0 {
		t.Fatalf("expected nothing archived inside the retention window")
	}
}

func TestSweepArchivesAndPurgesOldTerminalRecords(t *testing.T) {
	// Arrange
	f := newFixture(t)
	old := f.clock.Now().Add(-31 * 24 * time.Hour)
	f.repo.records = append(f.repo.records,
		&entity.Record{
			ID: 1, Identifier: "a@x.com", Purpose: entity.PurposePasswordReset,
			Channel: entity.ChannelEmail, State: entity.StateConsumed,
			IssuedAt: old, ExpiresAt: old.Add(5 * time.Minute), LastSentAt: old,
		},
		&entity.Record{
			ID: 2, Identifier: "b@x.com", Purpose: entity.PurposePasswordReset,
			Channel: entity.ChannelEmail, State: entity.StateExpired,
			IssuedAt: old, ExpiresAt: old.Add(5 * time.Minute), LastSentAt: old,
		},
		&entity.Record{
			ID: 3, Identifier: "c@x.com", Purpose: entity.PurposePasswordReset,
			Channel: entity.ChannelEmail, State: entity.StateConsumed,
			IssuedAt: f.clock.Now().Add(-time.Hour), ExpiresAt: f.clock.Now(), LastSentAt: f.clock.Now(),
		},
	)

	// Act
	if err := f.uc.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	// Assert
	if len(f.storage.puts) != 1 {
		t.Fatalf("expected 1 archive object, got %d", len(f.storage.puts))
	}

	put := f.storage.puts[0]
	if put.Bucket != "test-archive" {
		t.Fatalf("expected archive bucket test-archive, got %q", put.Bucket)
	}
	if !strings.HasPrefix(put.Key, "otp-archive/2025/") {
		t.Fatalf("expected date-partitioned key, got %q", put.Key)
	}

	lines := bytes.Split(bytes.TrimSpace(put.Body), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 archived lines, got %d", len(lines))
	}
	var first map[string]any
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("archive line is not valid json: %v", err)
	}
	if first["identifier"] != "a@x.com" {
		t.Fatalf("unexpected first archived identifier: %v", first["identifier"])
	}

	if len(f.repo.records) != 1 || f.repo.records[0].ID != 3 {
		t.Fatalf("expected only the recent record to survive the purge")
	}
}

func TestSweepWithoutRetentionSkipsArchive(t *testing.T) {
	// Arrange
	f := newFixture(t)
	noRetention := strings.Replace(testConfigYAML, "retention_days: 30", "retention_days: 0", 1)
	cfg := mustConfig(t, noRetention)
	f.uc.cfg = cfg

	old := f.clock.Now().Add(-365 * 24 * time.Hour)
	f.repo.records = append(f.repo.records, &entity.Record{
		ID: 1, Identifier: "a@x.com", Purpose: entity.PurposePasswordReset,
		Channel: entity.ChannelEmail, State: entity.StateConsumed,
		IssuedAt: old, ExpiresAt: old.Add(5 * time.Minute), LastSentAt: old,
	})

	// Act
	if err := f.uc.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	// Assert
	if len(f.storage.puts) != 0 {
		t.Fatalf("expected archiving disabled with zero retention")
	}
	if len(f.repo.records) != 1 {
		t.Fatalf("expected the record to be kept")
	}
}
