package otp

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/financeapp/otpgate/internal/otp/inbound"
	"github.com/financeapp/otpgate/internal/otp/outbound/db"
	"github.com/financeapp/otpgate/internal/otp/outbound/mq"
	"github.com/financeapp/otpgate/internal/otp/usecase"
	"github.com/financeapp/otpgate/internal/pkg/clock"
	"github.com/financeapp/otpgate/internal/pkg/config"
	"github.com/financeapp/otpgate/internal/pkg/goroutine"
	"github.com/financeapp/otpgate/internal/pkg/hash"
	"github.com/financeapp/otpgate/internal/pkg/idempotency"
	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/messaging"
	"github.com/financeapp/otpgate/internal/pkg/otpcode"
	"github.com/financeapp/otpgate/internal/pkg/router"
	"github.com/financeapp/otpgate/internal/pkg/storage"
	"github.com/financeapp/otpgate/internal/pkg/uid"
	"github.com/financeapp/otpgate/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context            `validate:"required"`
	DBConn      *pgxpool.Pool              `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Router      *router.Router             `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
	Messaging   messaging.Messaging        `validate:"required"`
	Storage     storage.Storage            `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	Generator   otpcode.Generator          `validate:"required"`
	UID         uid.NumberID               `validate:"required"`
	HMAC        hash.Hash                  `validate:"required"`
	Credential  hash.Hash                  `validate:"required"`
	Clock       clock.Clocker              `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	dbOtp := db.NewDB(dep.DBConn, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoDB:        dbOtp,
		RepoMessaging: repoMsg,
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		Config:        dep.Config,
		Storage:       dep.Storage,
		Generator:     dep.Generator,
		HMAC:          dep.HMAC,
		Credential:    dep.Credential,
		UID:           dep.UID,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)
	inbound.RegisterSweepJob(dep.Ctx, dep.Config, dep.Goroutine, uc)

	return nil
}
