package router

import (
	"net/http"
	"strings"

	"github.com/financeapp/otpgate/internal/pkg/config"
)

// middlewareMaintenance rejects routes listed under app.maintenance.endpoints
// with 503 so individual OTP endpoints can be taken offline without a deploy.
func middlewareMaintenance(cfg config.Config) Middleware {
	blocked := maintenanceRoutes(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, down := blocked[matchedRoutePath(r)]; down {
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func maintenanceRoutes(cfg config.Config) map[string]struct{} {
	routes := make(map[string]struct{})
	if cfg == nil {
		return routes
	}
	for _, endpoint := range cfg.GetArray("app.maintenance.endpoints") {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			routes[endpoint] = struct{}{}
		}
	}
	return routes
}
