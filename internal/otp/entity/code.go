package entity

import "time"

// Record is a single issued code and its lifecycle bookkeeping.
//
// Code and reset token are stored hashed; the plaintext exists only in the
// dispatch path right after issuance.
type Record struct {
	ID             int64
	Identifier     string
	Purpose        Purpose
	Channel        Channel
	CodeHash       string
	State          State
	Attempts       int16
	ResetTokenHash string // set only while State is Verified
	IssuedAt       time.Time
	ExpiresAt      time.Time
	LastSentAt     time.Time
	LastAttemptAt  *time.Time
}

type Account struct {
	ID        int64
	Email     string
	PhoneE164 string
	Status    AccountStatus
}
