package config

import (
	"io"
	"time"
)

// Config is the read surface the rest of the service sees. Lookups never
// fail; a missing or unconvertible key yields the type's zero value, so
// callers apply their own defaults where zero is not acceptable.
//
// Close releases whatever the implementation holds open for hot reload.
type Config interface {
	io.Closer

	GetBool(key string) bool
	GetString(key string) string

	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetUint32(key string) uint32
	GetUint64(key string) uint64
	GetFloat32(key string) float32
	GetFloat64(key string) float64

	// GetSecond, GetMinute, GetHour and GetDay read an integer key and scale
	// it to a duration, so "resend_cooldown_seconds: 60" reads as a minute.
	GetSecond(key string) time.Duration
	GetMinute(key string) time.Duration
	GetHour(key string) time.Duration
	GetDay(key string) time.Duration

	// GetBinary decodes a base64 string value.
	GetBinary(key string) []byte
	// GetArray splits a comma-separated string value. YAML lists also work.
	GetArray(key string) []string
	// GetMap parses "k1:v1,k2:v2" string values into a map.
	GetMap(key string) map[string]string
}
