package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogsite/internal/telemetry/metrics"
	"github.com/2beens/blogsite/pkg"
)

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit allows allowedPerMin requests per minute for each client ip on the routes it wraps.
func RateLimit(
	rateLimiter RequestRateLimiter,
	renderer errorRenderer,
	metricsManager *metrics.Manager,
	routerName string,
	allowedPerMin int,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, err := pkg.ReadUserIP(r)
			if err != nil {
				log.Debugf("rate limit [%s]: %s", routerName, err)
			}

			res, err := rateLimiter.Allow(
				r.Context(),
				fmt.Sprintf("%s:%s", routerName, ip),
				redis_rate.PerMinute(allowedPerMin),
			)
			if err != nil {
				log.Errorf("rate limit [%s]: %s", routerName, err)
				renderer.Error(w, r, http.StatusInternalServerError)
				return
			}

			if res.Allowed > 0 {
				next.ServeHTTP(w, r)
				return
			}

			metricsManager.CounterRateLimitedRequests.Inc()
			retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
			log.Debugf("rate limit [%s]: %s blocked, retry after %ds", routerName, ip, retryAfter)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			renderer.Error(w, r, http.StatusTooManyRequests)
		})
	}
}
