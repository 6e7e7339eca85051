package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"accounts/internal/constants"
)

// RateLimitMiddleware limits requests per client address over window. The
// address is the one ClientIPResolver.Middleware put on the context.
func RateLimitMiddleware(limit int, window time.Duration) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(retryAfterSeconds(window))

	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(clientAddressRateKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, constants.ErrCodeRateLimited, "Too many requests, please try again later")
		}),
	)
}

func retryAfterSeconds(window time.Duration) int {
	if window <= 0 {
		return 1
	}
	return int(math.Ceil(window.Seconds()))
}

func clientAddressRateKey(r *http.Request) (string, error) {
	return ClientAddress(r), nil
}
