package usecase

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/pkg/config"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
	"github.com/financeapp/otpgate/internal/pkg/hash"
	"github.com/financeapp/otpgate/internal/pkg/idempotency"
	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/storage"
)

const testConfigYAML = `
modules:
  otp:
    code_ttl_minutes: 5
    resend_cooldown_seconds: 60
    max_attempts: 5
    retention_days: 30
    archive_batch_size: 500
    archive_bucket: "test-archive"
`

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeUID struct {
	next int64
}

func (u *fakeUID) Generate() int64 {
	u.next++
	return u.next
}

type fakeGenerator struct {
	code  string
	token string
}

func (g *fakeGenerator) Code() (string, error)  { return g.code, nil }
func (g *fakeGenerator) Token() (string, error) { return g.token, nil }

type fakeValidator struct{}

func (fakeValidator) Validate(any) error { return nil }

type fakeIdempotency struct {
	acquireState idempotency.State
	acquired     []string
	completed    []string
	released     []string
}

func (f *fakeIdempotency) Acquire(_ context.Context, key string, _ time.Duration) (idempotency.State, error) {
	f.acquired = append(f.acquired, key)
	if f.acquireState == "" {
		return idempotency.StateNone, nil
	}
	return f.acquireState, nil
}

func (f *fakeIdempotency) MarkCompleted(_ context.Context, key string, _ time.Duration) error {
	f.completed = append(f.completed, key)
	return nil
}

func (f *fakeIdempotency) MarkFailed(context.Context, string, time.Duration) error { return nil }

func (f *fakeIdempotency) Release(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

func (f *fakeIdempotency) Exec(ctx context.Context, _ string, fn func(context.Context) error, _ ...idempotency.Option) error {
	return fn(ctx)
}

type fakeMessaging struct {
	events []OtpIssuedEvent
	err    error
}

func (f *fakeMessaging) PublishOtpIssued(_ context.Context, msg OtpIssuedEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, msg)
	return nil
}

// fakeRepo is an in-memory store honoring the same locking contract as the
// real one: closures see a copy and mutations persist only when they succeed.
type fakeRepo struct {
	records   []*entity.Record
	accounts  []*entity.Account
	passwords map[int64]string
	credErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{passwords: make(map[int64]string)}
}

func (r *fakeRepo) GetAccountByEmail(_ context.Context, email string) (*entity.Account, error) {
	for _, acc := range r.accounts {
		if acc.Email == email {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (r *fakeRepo) GetAccountByIdentifier(_ context.Context, identifier string) (*entity.Account, error) {
	for _, acc := range r.accounts {
		if acc.Email == identifier || acc.PhoneE164 == identifier {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (r *fakeRepo) latest(identifier string, purpose entity.Purpose) *entity.Record {
	var latest *entity.Record
	for _, rec := range r.records {
		if rec.Identifier != identifier || rec.Purpose != purpose {
			continue
		}
		if latest == nil || rec.IssuedAt.After(latest.IssuedAt) {
			latest = rec
		}
	}
	return latest
}

func (r *fakeRepo) IssueCode(
	_ context.Context,
	identifier string,
	purpose entity.Purpose,
	fn func(latest *entity.Record) (*entity.Record, error),
) error {
	var latest *entity.Record
	if cur := r.latest(identifier, purpose); cur != nil {
		cp := *cur
		latest = &cp
	}

	rec, err := fn(latest)
	if err != nil {
		return err
	}

	for _, old := range r.records {
		if old.Identifier == identifier && old.Purpose == purpose && !old.State.IsTerminal() {
			old.State = entity.StateSuperseded
			old.ResetTokenHash = ""
		}
	}

	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakeRepo) MutateActive(
	_ context.Context,
	identifier string,
	purpose entity.Purpose,
	fn func(rec *entity.Record) error,
) error {
	for _, rec := range r.records {
		if rec.Identifier != identifier || rec.Purpose != purpose || rec.State != entity.StateIssued {
			continue
		}

		cp := *rec
		if err := fn(&cp); err != nil {
			return err
		}
		*rec = cp
		return nil
	}
	return goerror.ErrNotFound
}

type fakeCredentialWriter struct {
	repo *fakeRepo
}

func (w fakeCredentialWriter) UpdateAccountCredential(_ context.Context, accountID int64, credentialHash string) error {
	if w.repo.credErr != nil {
		return w.repo.credErr
	}
	w.repo.passwords[accountID] = credentialHash
	return nil
}

func (r *fakeRepo) ConsumeToken(
	_ context.Context,
	identifier string,
	purpose entity.Purpose,
	tokenHash string,
	fn func(rec *entity.Record, cred CredentialWriter) error,
) error {
	for _, rec := range r.records {
		if rec.Identifier != identifier || rec.Purpose != purpose {
			continue
		}
		if rec.State != entity.StateVerified || rec.ResetTokenHash != tokenHash {
			continue
		}

		cp := *rec
		before := copyPasswords(r.passwords)
		if err := fn(&cp, fakeCredentialWriter{repo: r}); err != nil {
			r.passwords = before
			return err
		}

		cp.State = entity.StateConsumed
		cp.ResetTokenHash = ""
		*rec = cp
		return nil
	}
	return goerror.ErrNotFound
}

func copyPasswords(in map[int64]string) map[int64]string {
	out := make(map[int64]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (r *fakeRepo) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, rec := range r.records {
		if rec.State == entity.StateIssued && rec.ExpiresAt.Before(now) {
			rec.State = entity.StateExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) ListTerminalBefore(_ context.Context, cutoff time.Time, limit int32) ([]entity.Record, error) {
	out := make([]entity.Record, 0)
	for _, rec := range r.records {
		if int32(len(out)) >= limit {
			break
		}
		if rec.State.IsTerminal() && rec.IssuedAt.Before(cutoff) {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) DeleteRecords(_ context.Context, ids []int64) (int64, error) {
	keep := r.records[:0]
	var n int64
	for _, rec := range r.records {
		deleted := false
		for _, id := range ids {
			if rec.ID == id {
				deleted = true
				break
			}
		}
		if deleted {
			n++
		} else {
			keep = append(keep, rec)
		}
	}
	r.records = keep
	return n, nil
}

type storedObject struct {
	Bucket string
	Key    string
	Body   []byte
}

type fakeStorage struct {
	puts []storedObject
}

func (f *fakeStorage) Close() error { return nil }

func (f *fakeStorage) PutObject(_ context.Context, bucket, key string, r io.Reader, _ storage.PutOptions) (storage.ObjectInfo, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.puts = append(f.puts, storedObject{Bucket: bucket, Key: key, Body: body})
	return storage.ObjectInfo{Bucket: bucket, Key: key, Size: int64(len(body))}, nil
}

func (f *fakeStorage) GetObject(context.Context, string, string, storage.GetOptions) (io.ReadCloser, storage.ObjectInfo, error) {
	return nil, storage.ObjectInfo{}, errors.New("not implemented")
}

func (f *fakeStorage) StatObject(context.Context, string, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, errors.New("not implemented")
}

func (f *fakeStorage) DeleteObject(context.Context, string, string) error { return nil }

func (f *fakeStorage) ListObjects(context.Context, string, string, storage.ListOptions) ([]storage.ObjectInfo, error) {
	return nil, nil
}

func (f *fakeStorage) PresignGet(context.Context, string, string, time.Duration) (string, error) {
	return "", storage.ErrMissingSigner
}

func (f *fakeStorage) PresignPut(context.Context, string, string, storage.PutOptions, time.Duration) (string, error) {
	return "", storage.ErrMissingSigner
}

type fixture struct {
	uc         *Usecase
	repo       *fakeRepo
	messaging  *fakeMessaging
	idemp      *fakeIdempotency
	clock      *fakeClock
	generator  *fakeGenerator
	storage    *fakeStorage
	hmac       hash.Hash
	credential hash.Hash
}

func mustConfig(t *testing.T, yml string) config.Config {
	t.Helper()
	cfg, err := config.NewViperFromBytes("yaml", []byte(yml))
	if err != nil {
		t.Fatalf("failed to build test config: %v", err)
	}
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testConfigYAML)
}

func newFixtureWithConfig(t *testing.T, yml string) *fixture {
	t.Helper()

	cfg := mustConfig(t, yml)

	f := &fixture{
		repo:       newFakeRepo(),
		messaging:  &fakeMessaging{},
		idemp:      &fakeIdempotency{},
		clock:      &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		generator:  &fakeGenerator{code: "123456", token: "aaaabbbbccccddddeeeeffff0000111122223333444455556666777788889999"},
		storage:    &fakeStorage{},
		hmac:       hash.NewHMACSHA256("test-secret"),
		credential: hash.NewHMACSHA256("test-credential"),
	}

	f.uc = New(Dependency{
		RepoDB:        f.repo,
		RepoMessaging: f.messaging,
		Idempotency:   f.idemp,
		Validator:     fakeValidator{},
		Config:        cfg,
		Storage:       f.storage,
		Generator:     f.generator,
		HMAC:          f.hmac,
		Credential:    f.credential,
		UID:           &fakeUID{},
		Clock:         f.clock,
		Instrument:    instrument.NewNoop(),
	})

	return f
}
