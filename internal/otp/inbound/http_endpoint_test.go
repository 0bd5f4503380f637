package inbound

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/otp/usecase"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
	"github.com/financeapp/otpgate/internal/pkg/router"
)

type fakeUsecase struct {
	verifyOut *usecase.VerifyOutput
	sendIn    *usecase.SendInput
}

func (f *fakeUsecase) Send(_ context.Context, in usecase.SendInput) error {
	f.sendIn = &in
	return nil
}

func (f *fakeUsecase) Verify(context.Context, usecase.VerifyInput) (*usecase.VerifyOutput, error) {
	return f.verifyOut, nil
}

func (f *fakeUsecase) PasswordForgot(context.Context, usecase.PasswordForgotInput) error { return nil }
func (f *fakeUsecase) PasswordReset(context.Context, usecase.PasswordResetInput) error  { return nil }
func (f *fakeUsecase) Sweep(context.Context) error                                      { return nil }

func jsonRequest(t *testing.T, body string) *router.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return &router.Request{Request: req}
}

func TestOtpSendParsesPurposeAndChannel(t *testing.T) {
	// Arrange
	fake := &fakeUsecase{}
	end := &HTTPEndpoint{uc: fake}
	req := jsonRequest(t, `{"identifier":"a@x.com","purpose":"PASSWORD_RESET","channel":"email"}`)

	// Act
	resp, err := end.OtpSend(req)

	// Assert
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, ok := resp.(OtpSendResponse); !ok {
		t.Fatalf("unexpected response type %T", resp)
	}
	if fake.sendIn == nil {
		t.Fatalf("expected usecase to be called")
	}
	if fake.sendIn.Purpose != entity.PurposePasswordReset {
		t.Fatalf("expected parsed purpose, got %v", fake.sendIn.Purpose)
	}
	if fake.sendIn.Channel != entity.ChannelEmail {
		t.Fatalf("expected parsed channel, got %v", fake.sendIn.Channel)
	}
}

func TestOtpVerifyMapsOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		outcome    entity.VerifyOutcome
		wantStatus int
	}{
		{"invalid code", entity.OutcomeInvalidCode, http.StatusUnauthorized},
		{"expired", entity.OutcomeExpired, http.StatusUnauthorized},
		{"exhausted", entity.OutcomeExhausted, http.StatusTooManyRequests},
		{"not found", entity.OutcomeNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			end := &HTTPEndpoint{uc: &fakeUsecase{verifyOut: &usecase.VerifyOutput{Outcome: tc.outcome}}}
			req := jsonRequest(t, `{"identifier":"a@x.com","purpose":"PASSWORD_RESET","code":"000000"}`)

			// Act
			_, err := end.OtpVerify(req)

			// Assert
			var gerr *goerror.Error
			if !errors.As(err, &gerr) {
				t.Fatalf("expected business error, got %v", err)
			}
			if gerr.StatusCode() != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, gerr.StatusCode())
			}
		})
	}
}

func TestOtpVerifyReturnsTokenOnSuccess(t *testing.T) {
	// Arrange
	end := &HTTPEndpoint{uc: &fakeUsecase{
		verifyOut: &usecase.VerifyOutput{Outcome: entity.OutcomeOK, ResetToken: "tok"},
	}}
	req := jsonRequest(t, `{"identifier":"a@x.com","purpose":"PASSWORD_RESET","code":"123456"}`)

	// Act
	resp, err := end.OtpVerify(req)

	// Assert
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	out, ok := resp.(OtpVerifyResponse)
	if !ok {
		t.Fatalf("unexpected response type %T", resp)
	}
	if out.ResetToken != "tok" {
		t.Fatalf("expected reset token in response, got %q", out.ResetToken)
	}
}

func TestOtpSendRejectsMalformedBody(t *testing.T) {
	// Arrange
	end := &HTTPEndpoint{uc: &fakeUsecase{}}
	req := jsonRequest(t, `{"identifier":`)

	// Act
	_, err := end.OtpSend(req)

	// Assert
	if err == nil {
		t.Fatalf("expected error for malformed body")
	}
}
