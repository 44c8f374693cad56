package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// otpWindowScript cuenta envios por destino; la ventana arranca con el primer envio.
var otpWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

const (
	otpLimitPrefix  = "monay:otp:rl:"
	otpLimitTimeout = 500 * time.Millisecond
)

// redisOTPRateLimiter comparte el limite de envios entre replicas. Los destinos se guardan
// hasheados para no dejar moviles ni emails en Redis. Ante errores de Redis deja pasar.
type redisOTPRateLimiter struct {
	client redis.Scripter
	window time.Duration
	max    int
	logger *zap.Logger
}

func NewRedisOTPRateLimiter(client *redis.Client, window time.Duration, max int, logger *zap.Logger) OTPRateLimiter {
	if client == nil {
		return nil
	}
	return newRedisOTPRateLimiter(client, window, max, logger)
}

func newRedisOTPRateLimiter(client redis.Scripter, window time.Duration, max int, logger *zap.Logger) *redisOTPRateLimiter {
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisOTPRateLimiter{client: client, window: window, max: max, logger: logger}
}

func otpLimitKey(destination string) string {
	sum := sha256.Sum256([]byte(destination))
	return otpLimitPrefix + hex.EncodeToString(sum[:])
}

func (l *redisOTPRateLimiter) Allow(key string) bool {
	if l == nil || l.client == nil {
		return true
	}
	destination := strings.ToLower(strings.TrimSpace(key))
	if destination == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), otpLimitTimeout)
	defer cancel()

	count, err := otpWindowScript.Run(ctx, l.client, []string{otpLimitKey(destination)}, l.window.Milliseconds()).Int()
	if err != nil {
		l.logger.Warn("otp rate limit check failed", zap.Error(err))
		return true
	}
	return count <= l.max
}
