package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iudanet/credisync/pkg/api"
)

// RateLimiter ограничивает частоту запросов по ключу (scope устройства или IP)
// Каждому ключу соответствует token bucket из golang.org/x/time/rate
type RateLimiter struct {
	limiters map[string]*limiterEntry
	logger   *slog.Logger
	cleanupC chan struct{}
	stopOnce sync.Once
	limit    rate.Limit
	burst    int
	idle     time.Duration
	mu       sync.Mutex
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter создает новый rate limiter
// requests - максимальное количество запросов за окно window; столько же допускается подряд
func NewRateLimiter(requests int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if requests < 1 {
		requests = 1
	}
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		logger:   logger,
		cleanupC: make(chan struct{}),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		idle:     window * 2,
	}

	// Запускаем периодическую очистку неактивных ключей
	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupIdle(time.Now())
		case <-rl.cleanupC:
			return
		}
	}
}

// cleanupIdle удаляет ключи, не использовавшиеся дольше idle
func (rl *RateLimiter) cleanupIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, e := range rl.limiters {
		if now.Sub(e.lastSeen) > rl.idle {
			delete(rl.limiters, key)
		}
	}
}

// Stop останавливает cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanupC) })
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	return rl.allowAt(key, time.Now())
}

func (rl *RateLimiter) allowAt(key string, now time.Time) bool {
	rl.mu.Lock()
	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	rl.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Middleware отвечает 429 при превышении лимита; клиент считает это временной ошибкой
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)

		if !rl.Allow(key) {
			rl.logger.Warn("Rate limit exceeded",
				"key", key,
				"method", r.Method,
				"path", r.URL.Path,
			)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded, please try again later"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey ключ лимита: scope устройства, иначе IP адрес клиента
func clientKey(r *http.Request) string {
	if scope := r.Header.Get(api.ScopeHeader); scope != "" {
		return "scope:" + scope
	}
	return "ip:" + getClientIP(r)
}

// getClientIP извлекает IP адрес клиента из запроса
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Берем первый IP из списка (реальный клиент)
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
