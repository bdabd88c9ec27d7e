package console

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds runtime configuration for the console service.
type Config struct {
	Addr            string        `env:"ADDR,default=:8080"`
	DBDSN           string        `env:"DB_DSN,required"`
	PlaybookDir     string        `env:"PLAYBOOK_DIR,default=/var/lib/haforge/playbooks"`
	PlaybookBaseURL string        `env:"PLAYBOOK_BASE_URL"`
	SemaphoreURL    string        `env:"SEMAPHORE_URL,required"`
	SemaphoreToken  string        `env:"SEMAPHORE_TOKEN"`
	PollInterval    time.Duration `env:"SEMAPHORE_POLL_INTERVAL,default=3s"`
	PollTimeout     time.Duration `env:"SEMAPHORE_POLL_TIMEOUT,default=15m"`
	BcryptCost      int           `env:"BCRYPT_COST,default=10"`
	NATSURL         string        `env:"NATS_URL"`
	S3Bucket        string        `env:"S3_BUCKET"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
}

// LoadConfig returns a Config populated from environment variables.
func LoadConfig(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
