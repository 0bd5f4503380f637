package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/financeapp/otpgate/internal/notification/usecase"
	"github.com/financeapp/otpgate/internal/pkg/config"
	"github.com/financeapp/otpgate/internal/pkg/goroutine"
	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/messaging"
	"github.com/financeapp/otpgate/internal/pkg/uid"
	"github.com/financeapp/otpgate/internal/shared/event"
)

type uc interface {
	DeliverOtp(ctx context.Context, in usecase.DeliverOtpInput) error
}

func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.notification.consumer_names")

	var consumers = []struct {
		name    string
		topic   string // destination where publisher sent message
		handler messaging.Handler
	}{
		{
			name:    event.OtpIssuedConsumerNotification,
			topic:   event.OtpIssuedDestination,
			handler: mqHandler.OtpIssuedNotification,
		},
	}

	for _, consumer := range consumers {
		if len(enableConsumerNames) > 0 && slices.Contains(enableConsumerNames, consumer.name) {
			routine.Go(ctx, func(pCtx context.Context) error {
				slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
				return messenger.Consume(pCtx,
					consumer.topic,
					consumer.handler,
					messaging.WithChannel(consumer.name),
					messaging.WithQueueGroup(consumer.name),
					messaging.WithGroup(consumer.name),
					messaging.WithSubscription(consumer.name),
					messaging.WithAutoAck(true),
					messaging.WithConcurrency(10),
					messaging.WithMaxInFlight(10),
				)
			})
		}
	}
}
