package inbound

import (
	"github.com/financeapp/otpgate/internal/otp/entity"
	"github.com/financeapp/otpgate/internal/otp/usecase"
	"github.com/financeapp/otpgate/internal/pkg/goerror"
	"github.com/financeapp/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes HTTP handlers for the code lifecycle and the password
// reset flows built on top of it.
type HTTPEndpoint struct {
	uc uc
}

// OtpSend issues a one-time code for a registered identifier. The response is
// the same whether or not the identifier is known.
func (h *HTTPEndpoint) OtpSend(r *router.Request) (any, error) {
	var req OtpSendRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.Send(r.Context(), usecase.SendInput{
		Identifier: req.Identifier,
		Purpose:    entity.PurposeFromString(req.Purpose),
		Channel:    entity.ChannelFromString(req.Channel),
	}); err != nil {
		return nil, err
	}

	return OtpSendResponse{}, nil
}

// OtpVerify validates a submitted code and returns a reset token on success.
func (h *HTTPEndpoint) OtpVerify(r *router.Request) (any, error) {
	var req OtpVerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Identifier: req.Identifier,
		Purpose:    entity.PurposeFromString(req.Purpose),
		Code:       req.Code,
	})
	if err != nil {
		return nil, err
	}

	switch out.Outcome {
	case entity.OutcomeOK:
		return OtpVerifyResponse{ResetToken: out.ResetToken}, nil
	case entity.OutcomeInvalidCode:
		return nil, goerror.NewBusiness("Invalid code", goerror.CodeUnauthorized)
	case entity.OutcomeExpired:
		return nil, goerror.NewBusiness("Code has expired", goerror.CodeUnauthorized)
	case entity.OutcomeExhausted:
		return nil, goerror.NewBusiness("Too many incorrect attempts", goerror.CodeTooManyRequest)
	case entity.OutcomeNotFound:
		return nil, goerror.NewBusiness("No active code for this identifier", goerror.CodeNotFound)
	default:
		return nil, goerror.NewServer(nil)
	}
}

// PasswordForgot starts the email password reset flow with a constant response.
func (h *HTTPEndpoint) PasswordForgot(r *router.Request) (any, error) {
	var req PasswordForgotRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.PasswordForgot(r.Context(), usecase.PasswordForgotInput{
		Email: req.Email,
	}); err != nil {
		return nil, err
	}

	return PasswordForgotResponse{}, nil
}

// PasswordReset redeems a reset token and sets a new password.
func (h *HTTPEndpoint) PasswordReset(r *router.Request) (any, error) {
	var req PasswordResetRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	if err := h.uc.PasswordReset(r.Context(), usecase.PasswordResetInput{
		Identifier:  req.Identifier,
		ResetToken:  req.ResetToken,
		NewPassword: req.NewPassword,
	}); err != nil {
		return nil, err
	}

	return PasswordResetResponse{}, nil
}
