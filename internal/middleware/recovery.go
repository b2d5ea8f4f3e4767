package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogsite/internal/telemetry/metrics"
	"github.com/2beens/blogsite/pkg"
)

// PanicRecovery turns a handler panic into the 500 error page and counts it.
func PanicRecovery(renderer errorRenderer, metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				ip, _ := pkg.ReadUserIP(r)
				log.Errorf("http: panic serving %s %s for %s: %v\n%s", r.Method, r.URL.Path, ip, rec, debug.Stack())
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				renderer.Error(w, r, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
