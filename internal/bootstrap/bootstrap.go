// Package bootstrap arma las dependencias que comparten los binarios de cmd/.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"monay-auth/internal/config"
	"monay-auth/internal/db"
	"monay-auth/internal/email"
	"monay-auth/internal/media"
	"monay-auth/internal/metrics"
	"monay-auth/internal/notify"
	"monay-auth/internal/repository"
	"monay-auth/internal/secret"
	"monay-auth/internal/service"
)

// App agrupa el servicio de cuentas y lo que hay que cerrar al salir.
type App struct {
	Accounts   *service.AccountService
	JWT        *service.JWTService
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.Recorder

	closers []func()
}

// New conecta Postgres (y Redis si esta configurado) y arma el AccountService.
// El caller drena el Dispatcher antes de llamar a Close.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app.closers = append(app.closers, pool.Close)
	if err := db.EnsureSchema(ctx, pool); err != nil {
		app.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}

	key, err := secret.LoadKey(ctx, cfg.OTPSecret, cfg.OTPSecretKMS, cfg.AWSRegion)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("otp secret: %w", err)
	}
	codec, err := secret.NewCodec(cfg.OTPCodec, key)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("otp codec: %w", err)
	}

	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
	}
	app.Dispatcher = app.newDispatcher(cfg, logger)

	otpLimiter, tokenStore := app.connectRedis(ctx, cfg, logger)

	app.JWT = service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	store, err := newMediaStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("media store: %w", err)
	}

	deps := accountDeps(cfg, pool)
	deps.Codec = codec
	deps.Notifier = app.Dispatcher
	deps.Tokens = app.JWT
	deps.QR = media.NewQRGenerator(store)
	deps.Limiter = otpLimiter
	if app.Metrics != nil {
		deps.Metrics = app.Metrics
	}
	app.Accounts, err = service.NewAccountService(logger, deps)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("account service: %w", err)
	}
	return app, nil
}

// Close libera las conexiones en orden inverso al de apertura.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func accountDeps(cfg *config.Config, pool *pgxpool.Pool) service.AccountDeps {
	return service.AccountDeps{
		Accounts:  repository.NewPgAccountRepository(pool),
		Devices:   repository.NewPgDeviceRepository(pool),
		Changes:   repository.NewPgChannelChangeRepository(pool),
		Referrals: repository.NewPgReferralRepository(pool),
		Policy:    service.OTPPolicy{Digits: cfg.OTPDigits, TTL: cfg.OTPTTL},
		DeviceTTL: cfg.DeviceBindingTTL,
		BaseURL:   cfg.BaseURL,
	}
}

// connectRedis usa Redis para el rate limit y los refresh tokens si responde; si no, el
// limiter queda en memoria y los refresh tokens sin store.
func (a *App) connectRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.OTPRateLimiter, service.RefreshTokenStore) {
	var (
		limiter service.OTPRateLimiter
		tokens  service.RefreshTokenStore
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = client.Close() })
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = service.NewRedisOTPRateLimiter(client, cfg.OTPRateWindow, cfg.OTPRateMax, logger)
			tokens = service.NewRedisRefreshTokenStore(client)
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewOTPRateLimiter(cfg.OTPRateWindow, cfg.OTPRateMax)
	}
	return limiter, tokens
}

// newDispatcher arma el Dispatcher con los transportes configurados. Sin gateway SMS los
// mensajes se loguean; sin brokers Kafka los dead-letters van al log.
func (a *App) newDispatcher(cfg *config.Config, logger *zap.Logger) *notify.Dispatcher {
	var smsSender notify.SMSSender = notify.NewLogSMSSender(logger)
	if cfg.SMSGatewayURL != "" {
		gw, err := notify.NewHTTPGateway(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSSenderID, cfg.SMSRatePerSec)
		if err != nil {
			logger.Warn("sms gateway init failed", zap.Error(err))
		} else {
			smsSender = gw
		}
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUser,
			Password:    cfg.SMTPPass,
			From:        cfg.SMTPFrom,
			FromName:    cfg.SMTPFromName,
			ImplicitTLS: cfg.SMTPUseTLS,
		})
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var dead notify.DeadLetterSink = notify.NewLogDeadLetter(logger)
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := notify.NewKafkaDeadLetter(cfg.KafkaBrokers, cfg.KafkaDeadLetter, logger)
		if err != nil {
			logger.Warn("kafka dead letter init failed", zap.Error(err))
		} else {
			dead = sink
			a.closers = append(a.closers, func() {
				if err := sink.Close(); err != nil {
					logger.Warn("kafka dead letter close", zap.Error(err))
				}
			})
		}
	}

	opts := notify.Options{
		Timeout:     cfg.DispatchTimeout,
		MaxAttempts: cfg.DispatchMaxAttempts,
	}
	if a.Metrics != nil {
		opts.Observe = a.Metrics.ObserveDispatch
	}
	return notify.NewDispatcher(logger, smsSender, emailSender, dead, opts)
}

func newMediaStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	if strings.EqualFold(cfg.MediaStorage, "s3") {
		return media.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.SignedURLTTL)
	}
	return media.NewLocalStore(cfg.MediaLocalDir, strings.TrimSuffix(cfg.BaseURL, "/")), nil
}
