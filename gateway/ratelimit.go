package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cooplend/service"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Limiter decides whether a caller may make another call under a per-minute budget
type Limiter interface {
	Allow(ctx context.Context, key string, perMinute int) (bool, error)
}

// MemoryLimiter keeps one token bucket per key in process memory
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	maxKeys  int
}

// NewMemoryLimiter creates an in-process limiter
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		maxKeys:  10000,
	}
}

func (l *MemoryLimiter) getLimiter(key string, perMinute int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.limiters[key]
	if !exists {
		if len(l.limiters) >= l.maxKeys {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
		l.limiters[key] = limiter
	}
	return limiter
}

// Allow takes one token from the key's bucket
func (l *MemoryLimiter) Allow(_ context.Context, key string, perMinute int) (bool, error) {
	if perMinute <= 0 {
		return true, nil
	}
	return l.getLimiter(key, perMinute).Allow(), nil
}

// RedisLimiter counts calls per key in fixed one-minute windows shared by every replica
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter connects to the Redis server at url
func NewRedisLimiter(ctx context.Context, url string) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisLimiter{
		client: client,
		prefix: "cooplend:ratelimit:",
		now:    time.Now,
	}, nil
}

// Allow increments the counter of the current window
func (l *RedisLimiter) Allow(ctx context.Context, key string, perMinute int) (bool, error) {
	if perMinute <= 0 {
		return true, nil
	}

	window := l.now().Unix() / 60
	windowKey := l.prefix + key + ":" + strconv.FormatInt(window, 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, windowKey)
		pipe.Expire(ctx, windowKey, 2*time.Minute)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to count call: %w", err)
	}
	return incr.Val() <= int64(perMinute), nil
}

// Close closes the Redis connection
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// rateLimit charges the caller one call against the route's budget. A limiter
// backend failure lets the call through.
func (s *Server) rateLimit(perMinute int) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.RemoteAddr
			if userID, ok := userIDFrom(r.Context()); ok {
				caller = userID.String()
			}

			key := caller + ":" + routeTemplate(r)
			allowed, err := s.limiter.Allow(r.Context(), key, perMinute)
			if err != nil {
				log.WithError(err).WithField("key", key).Warn("Rate limiter unavailable")
				allowed = true
			}

			if !allowed {
				log.WithFields(log.Fields{
					"key":    key,
					"method": r.Method,
				}).Info("Rate limit exceeded")
				writeServiceError(w, r, service.NewRateLimitedError(
					fmt.Sprintf("Rate limit exceeded, at most %d calls per minute", perMinute)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
