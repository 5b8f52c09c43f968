package middleware

import (
	"net/http"
	"stayledger/pkg/logger"
	"sync"
	"time"
)

const AccountHeader = "X-Account"

type AccountExtractor func(r *http.Request) string

// AccountRateLimiter throttles requests per caller account within a sliding
// window. Requests without an account header pass through unthrottled.
type AccountRateLimiter struct {
	mu               sync.RWMutex
	requests         map[string][]time.Time
	limit            int
	window           time.Duration
	accountExtractor AccountExtractor
	log              *logger.Logger
	stopCh           chan struct{}
}

func NewAccountRateLimiter(limit int, window time.Duration, extractor AccountExtractor, log *logger.Logger) *AccountRateLimiter {
	limiter := &AccountRateLimiter{
		requests:         make(map[string][]time.Time),
		limit:            limit,
		window:           window,
		accountExtractor: extractor,
		log:              log,
		stopCh:           make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *AccountRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for account, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, account)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *AccountRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *AccountRateLimiter) Allow(account string) bool {
	if account == "" {
		return true
	}

	now := time.Now()

	rl.mu.RLock()
	timestamps := rl.requests[account]
	rl.mu.RUnlock()

	validTimestamps := make([]time.Time, 0)
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= rl.limit {
		return false
	}

	validTimestamps = append(validTimestamps, now)

	rl.mu.Lock()
	rl.requests[account] = validTimestamps
	rl.mu.Unlock()

	return true
}

func AccountRateLimit(limiter *AccountRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := extractAccount(r, limiter.accountExtractor)

			if account == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(account) {
				rejectRateLimited(w, limiter.log, r, account)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractAccount(r *http.Request, extractor AccountExtractor) string {
	if extractor == nil {
		return r.Header.Get(AccountHeader)
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, account string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		requestID = rid.(string)
	}

	log.Warn("Rate limit exceeded",
		"request_id", requestID,
		"account", account,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

func DefaultAccountExtractor(r *http.Request) string {
	return r.Header.Get(AccountHeader)
}
