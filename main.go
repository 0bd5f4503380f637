package main

import (
	"context"
	"time"

	"github.com/financeapp/otpgate/internal/app"
)

const shutdownGrace = 10 * time.Second

func main() {
	application := app.New()

	// Block until a termination signal arrives, then drain within the
	// grace window.
	<-application.Start()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	application.Stop(ctx)
}
