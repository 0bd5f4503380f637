package event

const OtpIssuedDestination string = "otp_issued"
const OtpIssuedConsumerNotification string = "otp_issued_notification"

type OtpIssuedMessage struct {
	RecordID   int64  `json:"record_id"`
	Identifier string `json:"identifier"`
	Purpose    string `json:"purpose"`
	Channel    string `json:"channel"`
	Subject    string `json:"subject"`
	Message    string `json:"message"`
}
