// Package validator validates request and dependency structs through a small
// interface.
//
// The v10 implementation wraps go-playground/validator with english
// translations and the extra rules the OTP flows need (password strength,
// E.164 phone numbers). Failures come back as a field-to-message map keyed in
// snake_case so HTTP handlers can return them as-is.
package validator
