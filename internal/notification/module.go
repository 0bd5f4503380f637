package notification

import (
	"context"

	"github.com/financeapp/otpgate/internal/notification/inbound"
	"github.com/financeapp/otpgate/internal/notification/outbound/email"
	"github.com/financeapp/otpgate/internal/notification/outbound/sms"
	"github.com/financeapp/otpgate/internal/notification/usecase"
	"github.com/financeapp/otpgate/internal/pkg/config"
	"github.com/financeapp/otpgate/internal/pkg/goroutine"
	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/mail"
	"github.com/financeapp/otpgate/internal/pkg/messaging"
	"github.com/financeapp/otpgate/internal/pkg/uid"
	"github.com/financeapp/otpgate/internal/pkg/validator"
)

type Dependency struct {
	Ctx        context.Context
	Messaging  messaging.Messaging
	Config     config.Config
	Instrument instrument.Instrumentation
	UUID       uid.StringID
	Goroutine  *goroutine.Manager
	Validator  validator.Validator
	Mail       mail.Mail
}

func New(dep Dependency) error {
	repoMail := email.New(dep.Mail, dep.Instrument)
	repoSMS := sms.NewConsole(dep.Instrument)

	uc := usecase.NewNotification(usecase.Dependency{
		RepoMail:   repoMail,
		RepoSMS:    repoSMS,
		Config:     dep.Config,
		Validator:  dep.Validator,
		Instrument: dep.Instrument,
	})

	if dep.Ctx != nil {
		inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	}

	return nil
}
