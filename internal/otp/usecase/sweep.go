package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/financeapp/otpgate/internal/pkg/goerror"
	"github.com/financeapp/otpgate/internal/pkg/storage"
)

type archivedRecord struct {
	ID            int64      `json:"id"`
	Identifier    string     `json:"identifier"`
	Purpose       string     `json:"purpose"`
	Channel       string     `json:"channel"`
	State         string     `json:"state"`
	Attempts      int16      `json:"attempts"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	LastSentAt    time.Time  `json:"last_sent_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// Sweep is the housekeeping pass: overdue Issued records move to Expired, and
// terminal records past the retention window are archived to object storage
// and purged. Verify decides expiry on its own, so this is hygiene only.
func (s *Usecase) Sweep(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Sweep")
	defer span.End()

	now := s.clock.Now()

	expired, err := s.repoDB.ExpireOverdue(ctx, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo expire overdue records", "error", err)
		return goerror.NewServer(err)
	}
	if expired > 0 {
		slog.InfoContext(ctx, "expired overdue records", "count", expired)
	}

	retention := s.cfg.GetDay("modules.otp.retention_days")
	if retention <= 0 {
		return nil
	}

	limit := s.cfg.GetInt32("modules.otp.archive_batch_size")
	if limit <= 0 {
		limit = 500
	}

	records, err := s.repoDB.ListTerminalBefore(ctx, now.Add(-retention), limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list terminal records", "error", err)
		return goerror.NewServer(err)
	}
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if err := enc.Encode(archivedRecord{
			ID:            rec.ID,
			Identifier:    rec.Identifier,
			Purpose:       rec.Purpose.String(),
			Channel:       rec.Channel.String(),
			State:         rec.State.String(),
			Attempts:      rec.Attempts,
			IssuedAt:      rec.IssuedAt,
			ExpiresAt:     rec.ExpiresAt,
			LastSentAt:    rec.LastSentAt,
			LastAttemptAt: rec.LastAttemptAt,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to encode archive record", "record_id", rec.ID, "error", err)
			return goerror.NewServer(err)
		}
		ids = append(ids, rec.ID)
	}

	bucket := s.cfg.GetString("modules.otp.archive_bucket")
	key := fmt.Sprintf("otp-archive/%s/%d.jsonl", now.Format("2006/01/02"), now.UnixNano())

	if _, err := s.storage.PutObject(ctx, bucket, key, &buf, storage.PutOptions{
		Size:        int64(buf.Len()),
		ContentType: "application/x-ndjson",
	}); err != nil {
		slog.ErrorContext(ctx, "failed to archive records to object storage", "bucket", bucket, "key", key, "error", err)
		return goerror.NewServer(err)
	}

	deleted, err := s.repoDB.DeleteRecords(ctx, ids)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete archived records", "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "archived terminal records", "count", deleted, "bucket", bucket, "key", key)
	return nil
}
