package github

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gitpulse/gitpulse/pkg/logger"
)

// RateLimiter retries a request exactly once after a rate-limit rejection.
// The wait honors a Retry-After header when the remote sends one, otherwise
// it is computed from the reset time plus a safety margin; without either a
// fixed short delay is used. A second consecutive rejection is passed through
// to the caller as the failure for that request.
type RateLimiter struct {
	margin        time.Duration
	fallbackDelay time.Duration
	sleep         func(time.Duration)
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		margin:        5 * time.Second,
		fallbackDelay: 500 * time.Millisecond,
		sleep:         time.Sleep,
	}
}

func (r *RateLimiter) Middleware(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(req)
		if err != nil {
			logger.Error("Network error in RoundTrip: %v", err)
			return nil, err
		}

		if resp.StatusCode != http.StatusForbidden {
			return resp, nil
		}

		// Secondary rate limits answer 403 with a nonzero remaining count,
		// so the message body has to be consulted too. Peek it here and hand
		// it back untouched on the pass-through path.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if !isRateLimited(resp.Header, body) {
			resp.Body = io.NopCloser(bytes.NewReader(body))
			return resp, nil
		}

		wait := r.waitDuration(resp.Header, time.Now())
		logger.Warn("[RateLimiter] Rate limit exceeded. Waiting %v before retry.", wait)

		r.sleep(wait)
		return next.RoundTrip(req)
	})
}

// waitDuration prefers an explicit Retry-After, then reset-epoch minus now
// floored at zero plus the safety margin. Missing or malformed headers fall
// back to a fixed short delay.
func (r *RateLimiter) waitDuration(headers http.Header, now time.Time) time.Duration {
	if ra := headers.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}

	reset := headers.Get("X-RateLimit-Reset")
	if reset == "" {
		return r.fallbackDelay
	}

	epoch, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return r.fallbackDelay
	}

	wait := time.Unix(epoch, 0).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait + r.margin
}

// isRateLimited recognizes both primary limits (remaining exhausted) and
// secondary limits (Retry-After or a rate-limit message with remaining
// still nonzero). Any other 403 is an authorization failure, not a limit.
func isRateLimited(headers http.Header, body []byte) bool {
	if headers.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	if headers.Get("Retry-After") != "" {
		return true
	}
	return bytes.Contains(bytes.ToLower(body), []byte("rate limit"))
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
