// Package hash covers every secret the service keeps at rest.
//
// Two families live here behind the same Hash interface: slow credential
// hashers (Bcrypt, Argon2id) for account passwords, and the keyed HMACSHA256
// used for OTP codes and reset tokens where the store must be able to match
// an incoming value against a row without holding plaintext.
package hash
