package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// 自動同期間隔の上下限
const (
	MinSyncInterval = 10 * time.Second
	MaxSyncInterval = 300 * time.Second
)

// Configはアプリ全体の設定
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	GoEnv    string `envconfig:"GO_ENV" default:"prod"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL      string `envconfig:"DATABASE_URL"`
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"postgres"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"postgres"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"florist"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	JWTSecret string `envconfig:"JWT_SECRET"`
	FEURL     string `envconfig:"FE_URL"` // コールバックURLの組み立てに使う

	Midtrans MidtransConfig `envconfig:"MIDTRANS"`
	Sync     SyncConfig     `envconfig:"PAYMENT_SYNC"`

	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS"`
	KafkaPaymentTopic string   `envconfig:"KAFKA_PAYMENT_TOPIC" default:"order.payment.updated"`

	RedisAddr   string `envconfig:"REDIS_ADDR"`
	SyncLogSize int    `envconfig:"SYNC_LOG_SIZE" default:"50"`
}

type MidtransConfig struct {
	ServerKey       string `envconfig:"SERVER_KEY"`
	ClientKey       string `envconfig:"CLIENT_KEY"`
	IsProduction    bool   `envconfig:"IS_PRODUCTION" default:"false"`
	VerifySignature bool   `envconfig:"VERIFY_SIGNATURE" default:"false"`
}

type SyncConfig struct {
	Enabled   bool          `envconfig:"ENABLED" default:"true"`
	Interval  time.Duration `envconfig:"INTERVAL" default:"30s"`
	BatchSize int           `envconfig:"BATCH_SIZE" default:"5"`
	Delay     time.Duration `envconfig:"DELAY" default:"300ms"`
}

func (c Config) IsDev() bool {
	return strings.EqualFold(c.GoEnv, "dev")
}

func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// .envがあれば先に読む（無くてもエラーにしない）
func LoadDotenv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// Loadは環境変数
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	//必須チェック
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.FEURL == "" {
		return errors.New("FE_URL is required")
	}
	if c.Midtrans.ServerKey == "" {
		return errors.New("MIDTRANS_SERVER_KEY is required")
	}
	if err := ValidateSyncInterval(c.Sync.Interval); err != nil {
		return fmt.Errorf("PAYMENT_SYNC_INTERVAL: %w", err)
	}
	if c.Sync.BatchSize <= 0 {
		return errors.New("PAYMENT_SYNC_BATCH_SIZE must be positive")
	}
	if c.Sync.Delay < 0 {
		return errors.New("PAYMENT_SYNC_DELAY must not be negative")
	}
	if c.SyncLogSize <= 0 {
		return errors.New("SYNC_LOG_SIZE must be positive")
	}
	return nil
}

func ValidateSyncInterval(d time.Duration) error {
	if d < MinSyncInterval || d > MaxSyncInterval {
		return fmt.Errorf("interval %s out of range [%s, %s]", d, MinSyncInterval, MaxSyncInterval)
	}
	return nil
}
