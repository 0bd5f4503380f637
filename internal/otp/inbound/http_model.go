package inbound

type OtpSendRequest struct {
	Identifier string `json:"identifier"`
	Purpose    string `json:"purpose"`
	Channel    string `json:"channel"`
}

type OtpSendResponse struct{}

func (OtpSendResponse) Message() string {
	return "If the identifier is registered, we have sent a one-time code."
}

type OtpVerifyRequest struct {
	Identifier string `json:"identifier"`
	Purpose    string `json:"purpose"`
	Code       string `json:"code"`
}

type OtpVerifyResponse struct {
	ResetToken string `json:"reset_token"`
}

func (OtpVerifyResponse) Message() string {
	return "Code verified successfully."
}

type PasswordForgotRequest struct {
	Email string `json:"email"`
}

type PasswordForgotResponse struct{}

func (PasswordForgotResponse) Message() string {
	return "If an account with that email exists, we have sent a one-time code."
}

type PasswordResetRequest struct {
	Identifier  string `json:"identifier"`
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

type PasswordResetResponse struct{}

func (PasswordResetResponse) Message() string {
	return "Your password has been reset."
}
