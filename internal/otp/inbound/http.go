package inbound

import (
	"context"

	"github.com/financeapp/otpgate/internal/otp/usecase"
	"github.com/financeapp/otpgate/internal/pkg/router"
)

type uc interface {
	Send(ctx context.Context, in usecase.SendInput) error
	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)

	PasswordForgot(ctx context.Context, in usecase.PasswordForgotInput) error
	PasswordReset(ctx context.Context, in usecase.PasswordResetInput) error

	Sweep(ctx context.Context) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// Code lifecycle
	r.POST("/api/v1/otp/send", end.OtpSend)
	r.POST("/api/v1/otp/verify", end.OtpVerify)

	// Password reset on top of the code lifecycle
	r.POST("/api/v1/password/forgot", end.PasswordForgot)
	r.POST("/api/v1/password/reset", end.PasswordReset)
}
