package router

import (
	"net/http"
	"strings"

	"github.com/financeapp/otpgate/internal/pkg/instrument"
	"github.com/financeapp/otpgate/internal/pkg/uid"
)

const (
	// HeaderCorrelationID is the canonical header used to track requests end-to-end.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is an accepted alternative header name used by some proxies.
	HeaderRequestID = "X-Request-ID"
)

const maxCIDLen = 128

// normalizeCID sanitizes a caller-supplied correlation ID. Values with CR
// or LF are discarded outright to keep them out of log lines and headers.
func normalizeCID(v string) string {
	if strings.ContainsAny(v, "\r\n") {
		return ""
	}
	v = strings.TrimSpace(v)
	if len(v) > maxCIDLen {
		v = v[:maxCIDLen]
	}
	return v
}

// middlewareCorrelationID adopts the caller's correlation ID when one is
// supplied, or mints a fresh one, and echoes it on the response.
func middlewareCorrelationID(uid uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := requestCID(r, uid)
			if cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cid))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestCID(r *http.Request, uid uid.StringID) string {
	if cid := normalizeCID(r.Header.Get(HeaderCorrelationID)); cid != "" {
		return cid
	}
	if cid := normalizeCID(r.Header.Get(HeaderRequestID)); cid != "" {
		return cid
	}
	if uid != nil {
		return uid.Generate()
	}
	return ""
}
