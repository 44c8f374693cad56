package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080/"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	OTPSecret        string        `env:"OTP_SECRET"`
	OTPSecretKMS     string        `env:"OTP_SECRET_KMS_CIPHERTEXT"`
	OTPCodec         string        `env:"OTP_CODEC" envDefault:"hmac"`
	OTPTTL           time.Duration `env:"OTP_TTL" envDefault:"0s"`
	OTPDigits        int           `env:"OTP_DIGITS" envDefault:"6"`
	OTPRateWindow    time.Duration `env:"OTP_RATE_WINDOW" envDefault:"10m"`
	OTPRateMax       int           `env:"OTP_RATE_MAX" envDefault:"5"`
	DeviceBindingTTL time.Duration `env:"DEVICE_BINDING_TTL" envDefault:"720h"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	SMSGatewayURL string  `env:"SMS_GATEWAY_URL"`
	SMSAPIKey     string  `env:"SMS_API_KEY"`
	SMSSenderID   string  `env:"SMS_SENDER_ID" envDefault:"MONAY"`
	SMSRatePerSec float64 `env:"SMS_RATE_PER_SEC" envDefault:"10"`

	DispatchTimeout     time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"10s"`
	DispatchMaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
	KafkaBrokers        []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaDeadLetter     string        `env:"KAFKA_DEAD_LETTER_TOPIC" envDefault:"notifications.dead-letter"`
	KafkaReplayGroup    string        `env:"KAFKA_REPLAY_GROUP" envDefault:"notifications-replay"`

	MediaStorage  string        `env:"MEDIA_STORAGE" envDefault:"local"`
	MediaLocalDir string        `env:"MEDIA_LOCAL_DIR" envDefault:"public/uploads"`
	AWSRegion     string        `env:"AWS_REGION"`
	S3Bucket      string        `env:"S3_BUCKET"`
	SignedURLTTL  time.Duration `env:"SIGNED_URL_TTL" envDefault:"15m"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
