package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// scriptStub responde EvalSha como si el script ya estuviera cargado.
type scriptStub struct {
	redis.Scripter
	keys   []string
	args   []interface{}
	result int64
	err    error
}

func (s *scriptStub) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	s.keys = keys
	s.args = args
	cmd := redis.NewCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	cmd.SetVal(s.result)
	return cmd
}

func TestRedisOTPRateLimiterAllow(t *testing.T) {
	t.Run("nil receiver fail-open", func(t *testing.T) {
		var l *redisOTPRateLimiter
		if !l.Allow("+15551230000") {
			t.Fatalf("expected fail-open for nil limiter")
		}
	})

	t.Run("empty key rejected", func(t *testing.T) {
		l := newRedisOTPRateLimiter(&scriptStub{result: 1}, time.Minute, 3, nil)
		if l.Allow("   ") {
			t.Fatalf("expected empty key to be rejected")
		}
	})

	t.Run("hashed normalized key and window in ms", func(t *testing.T) {
		stub := &scriptStub{result: 2}
		l := newRedisOTPRateLimiter(stub, 2*time.Minute, 3, nil)
		if !l.Allow(" User@Example.com ") {
			t.Fatalf("expected allow when count <= max")
		}
		if len(stub.keys) != 1 || stub.keys[0] != otpLimitKey("user@example.com") {
			t.Fatalf("unexpected key, got %+v", stub.keys)
		}
		if len(stub.args) != 1 || stub.args[0] != int64(120000) {
			t.Fatalf("expected window 120000ms, got %+v", stub.args)
		}
	})

	t.Run("deny when count exceeds max", func(t *testing.T) {
		l := newRedisOTPRateLimiter(&scriptStub{result: 4}, time.Minute, 3, nil)
		if l.Allow("user@example.com") {
			t.Fatalf("expected deny when count > max")
		}
	})

	t.Run("redis error fail-open", func(t *testing.T) {
		l := newRedisOTPRateLimiter(&scriptStub{err: errors.New("redis down")}, time.Minute, 3, nil)
		if !l.Allow("user@example.com") {
			t.Fatalf("expected fail-open on redis errors")
		}
	})
}

func TestRedisOTPRateLimiterMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisOTPRateLimiter(client, time.Minute, 2, nil)
	for i := 0; i < 2; i++ {
		if !l.Allow("+15551230000") {
			t.Fatalf("expected attempt %d to be allowed", i+1)
		}
	}
	if l.Allow("+15551230000") {
		t.Fatalf("expected third attempt to be denied")
	}
	key := otpLimitKey("+15551230000")
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected window ttl on key, got %v", ttl)
	}
	for _, k := range mr.Keys() {
		if k == otpLimitPrefix+"+15551230000" {
			t.Fatalf("destination stored in clear")
		}
	}

	mr.FastForward(61 * time.Second)
	if !l.Allow("+15551230000") {
		t.Fatalf("expected allow after window expiry")
	}
}
