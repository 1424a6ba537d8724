package redis

import "time"

// Config holds the Redis connection settings, populated from the environment.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // redis://:password@host:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"` // multiplied by the attempt number
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	// SubscriptionTTL bounds how long a cached subscription lookup may be served.
	SubscriptionTTL time.Duration `env:"REDIS_SUBSCRIPTION_TTL" envDefault:"1m"`
}
