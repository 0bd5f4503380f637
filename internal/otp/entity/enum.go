package entity

import (
	"errors"
	"strings"
)

var (
	ErrThrottled    = errors.New("otp: resend cooldown has not elapsed")
	ErrExpired      = errors.New("otp: code has expired")
	ErrExhausted    = errors.New("otp: verification attempts exhausted")
	ErrInvalidCode  = errors.New("otp: submitted code does not match")
	ErrInvalidToken = errors.New("otp: reset token is invalid or already used")
)

type State int16

const (
	// StateUnknown is mean state is not known / not set.
	StateUnknown State = 0

	// StateIssued mean the code was created and dispatched, awaiting verification.
	StateIssued State = 1

	// StateVerified mean the code was accepted and a reset token was minted.
	StateVerified State = 2

	// StateConsumed mean the reset token was redeemed; the record is inert.
	StateConsumed State = 3

	// StateExpired mean the code outlived its TTL before being accepted.
	StateExpired State = 4

	// StateExhausted mean the attempt ceiling was reached; the record is inert.
	StateExhausted State = 5

	// StateSuperseded mean a newer code was issued for the same identifier and purpose.
	StateSuperseded State = 6
)

func (s State) String() string {
	switch s {
	case StateIssued:
		return "Issued"
	case StateVerified:
		return "Verified"
	case StateConsumed:
		return "Consumed"
	case StateExpired:
		return "Expired"
	case StateExhausted:
		return "Exhausted"
	case StateSuperseded:
		return "Superseded"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the state allows no further transitions.
func (s State) IsTerminal() bool {
	switch s {
	case StateConsumed, StateExpired, StateExhausted, StateSuperseded:
		return true
	default:
		return false
	}
}

type Purpose int16

const (
	PurposeUnknown       Purpose = 0
	PurposePasswordReset Purpose = 1
	PurposePhoneVerify   Purpose = 2
)

func (p Purpose) String() string {
	switch p {
	case PurposePasswordReset:
		return "password reset"
	case PurposePhoneVerify:
		return "phone verification"
	default:
		return "unknown"
	}
}

func (p Purpose) IsUnknown() bool {
	switch p {
	case PurposePasswordReset, PurposePhoneVerify:
		return false
	default:
		return true
	}
}

func PurposeFromString(s string) Purpose {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASSWORD_RESET":
		return PurposePasswordReset
	case "PHONE_VERIFY":
		return PurposePhoneVerify
	default:
		return PurposeUnknown
	}
}

type Channel int16

const (
	ChannelUnknown Channel = 0
	ChannelEmail   Channel = 1
	ChannelSMS     Channel = 2
)

func (c Channel) String() string {
	switch c {
	case ChannelEmail:
		return "email"
	case ChannelSMS:
		return "sms"
	default:
		return "unknown"
	}
}

func ChannelFromString(s string) Channel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ChannelEmail
	case "sms":
		return ChannelSMS
	default:
		return ChannelUnknown
	}
}

type VerifyOutcome int

const (
	OutcomeUnknown VerifyOutcome = iota
	OutcomeOK
	OutcomeInvalidCode
	OutcomeExpired
	OutcomeExhausted
	OutcomeNotFound
)

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeOK:
		return "OK"
	case OutcomeInvalidCode:
		return "INVALID_CODE"
	case OutcomeExpired:
		return "EXPIRED"
	case OutcomeExhausted:
		return "EXHAUSTED"
	case OutcomeNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

type AccountStatus int16

const (
	AccountStatusUnknown  AccountStatus = 0
	AccountStatusActive   AccountStatus = 1
	AccountStatusInactive AccountStatus = 2
)

func (as AccountStatus) String() string {
	switch as {
	case AccountStatusActive:
		return "Active"
	case AccountStatusInactive:
		return "Inactive"
	default:
		return "Unknown"
	}
}
