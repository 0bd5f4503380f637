package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/financeapp/otpgate/internal/pkg/clock"
	"github.com/financeapp/otpgate/internal/pkg/config"
	"github.com/financeapp/otpgate/internal/pkg/goroutine"
	"github.com/financeapp/otpgate/internal/pkg/hash"
	"github.com/financeapp/otpgate/internal/pkg/idempotency"
	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/mail"
	"github.com/financeapp/otpgate/internal/pkg/messaging"
	"github.com/financeapp/otpgate/internal/pkg/otpcode"
	"github.com/financeapp/otpgate/internal/pkg/router"
	"github.com/financeapp/otpgate/internal/pkg/storage"
	"github.com/financeapp/otpgate/internal/pkg/uid"
	"github.com/financeapp/otpgate/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine  *goroutine.Manager
	validator  validator.Validator
	clock      clock.Clocker
	hmac       hash.Hash
	credential hash.Hash
	generator  otpcode.Generator
	uid        uid.NumberID
	uuid       uid.StringID

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	mail      mail.Mail
	messaging messaging.Messaging
	storage   storage.Storage

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initMail()
	app.initStorage()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
