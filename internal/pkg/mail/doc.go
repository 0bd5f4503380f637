// Package mail sends email without tying callers to a provider.
//
// The notification module delivers OTP codes through the Mail interface and
// never sees the transport. SMTP is the only driver today; swapping in an
// API-based provider means adding another implementation of Mail here.
package mail
