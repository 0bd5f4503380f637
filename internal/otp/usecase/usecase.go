package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/clock"
	"github.com/financeapp/otpgate/internal/pkg/config"
	"github.com/financeapp/otpgate/internal/pkg/hash"
	"github.com/financeapp/otpgate/internal/pkg/idempotency"
	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/otpcode"
	"github.com/financeapp/otpgate/internal/pkg/storage"
	"github.com/financeapp/otpgate/internal/pkg/uid"
	"github.com/financeapp/otpgate/internal/pkg/validator"
)

type OtpIssuedEvent struct {
	RecordID   int64
	Identifier string
	Purpose    entity.Purpose
	Channel    entity.Channel
	Subject    string
	Message    string
}

type repoMessaging interface {
	PublishOtpIssued(ctx context.Context, msg OtpIssuedEvent) error
}

// CredentialWriter performs the caller-owned credential mutation inside the
// same database transaction as the token redemption.
type CredentialWriter interface {
	UpdateAccountCredential(ctx context.Context, accountID int64, credentialHash string) error
}

// ApplyFunc is the credential change applied on token redemption. A non-nil
// error rolls the redemption back and keeps the record redeemable.
type ApplyFunc func(ctx context.Context, cred CredentialWriter) error

type repoDB interface {
	GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error)
	GetAccountByIdentifier(ctx context.Context, identifier string) (*entity.Account, error)

	// IssueCode locks the latest record for the pair, calls fn with it (nil
	// when none exists), supersedes every non-terminal record, and inserts
	// the record fn returns. An error from fn aborts without writing.
	IssueCode(ctx context.Context, identifier string, purpose entity.Purpose, fn func(latest *entity.Record) (*entity.Record, error)) error

	// MutateActive locks the single Issued record for the pair and calls fn
	// with it; the mutated fields are persisted unless fn returns an error.
	MutateActive(ctx context.Context, identifier string, purpose entity.Purpose, fn func(rec *entity.Record) error) error

	// ConsumeToken locks the Verified record matching the token hash, calls
	// fn with it and a transaction-bound credential writer, then marks the
	// record Consumed. An error from fn rolls everything back.
	ConsumeToken(ctx context.Context, identifier string, purpose entity.Purpose, tokenHash string, fn func(rec *entity.Record, cred CredentialWriter) error) error

	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int32) ([]entity.Record, error)
	DeleteRecords(ctx context.Context, ids []int64) (int64, error)
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	idemp         idempotency.Idempotency
	validator     validator.Validator
	cfg           config.Config
	storage       storage.Storage
	generator     otpcode.Generator
	hmac          hash.Hash
	credential    hash.Hash
	uid           uid.NumberID
	clock         clock.Clocker
	ins           instrument.Instrumentation
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Idempotency   idempotency.Idempotency
	Validator     validator.Validator
	Config        config.Config
	Storage       storage.Storage
	Generator     otpcode.Generator
	HMAC          hash.Hash
	Credential    hash.Hash
	UID           uid.NumberID
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		storage:       dep.Storage,
		generator:     dep.Generator,
		hmac:          dep.HMAC,
		credential:    dep.Credential,
		uid:           dep.UID,
		clock:         dep.Clock,
		ins:           dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

func (s *Usecase) codeTTL() time.Duration {
	ttl := s.cfg.GetMinute("modules.otp.code_ttl_minutes")
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return ttl
}

func (s *Usecase) resendCooldown() time.Duration {
	cd := s.cfg.GetSecond("modules.otp.resend_cooldown_seconds")
	if cd <= 0 {
		cd = 60 * time.Second
	}
	return cd
}

func (s *Usecase) codeLength() int {
	if n := s.cfg.GetInt("modules.otp.code_length"); n > 0 {
		return n
	}
	return 6
}

func (s *Usecase) maxAttempts() int16 {
	max := s.cfg.GetInt("modules.otp.max_attempts")
	if max <= 0 {
		max = 5
	}
	return int16(max)
}

// normalizeIdentifier lower-cases emails and strips spacing from phone numbers
// so the same contact always maps to the same record key.
func normalizeIdentifier(v string) string {
	v = strings.TrimSpace(v)
	if strings.Contains(v, "@") {
		return strings.ToLower(v)
	}
	return strings.ReplaceAll(v, " ", "")
}

func (s *Usecase) renderSubject(purpose entity.Purpose) string {
	return "Your OTP for " + purpose.String()
}

func (s *Usecase) renderMessage(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your OTP is: %s (valid for %d minutes)", code, int(ttl.Minutes()))
}
