package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	APIAddr     string `env:"API_ADDR" envDefault:":5000"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	GeneDB        int    `env:"REDIS_GENE_DB" envDefault:"0"`
	QueueDB       int    `env:"REDIS_QUEUE_DB" envDefault:"1"`
	JobDB         int    `env:"REDIS_JOB_DB" envDefault:"2"`
	ResultDB      int    `env:"REDIS_RESULT_DB" envDefault:"3"`
	QueueName     string `env:"QUEUE_NAME" envDefault:"genejobs"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"redis"`
	PostgresDSN  string `env:"POSTGRES_DSN"`

	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"1"`
	DequeueBlock      time.Duration `env:"DEQUEUE_BLOCK" envDefault:"5s"`
	DefaultVT         int           `env:"DEFAULT_VISIBILITY_TIMEOUT_SEC" envDefault:"300"`
	ReapSchedule      string        `env:"REAP_SCHEDULE" envDefault:"@every 5s"`
	ReapBatch         int64         `env:"REAP_BATCH" envDefault:"500"`

	HGNCDataURL string `env:"HGNC_DATA_URL" envDefault:"https://storage.googleapis.com/public-download-files/hgnc/json/json/hgnc_complete_set.json"`
}

func (c Config) Visibility() time.Duration { return time.Duration(c.DefaultVT) * time.Second }

// Parse reads the environment, with a .env file in the working directory
// filling in anything unset.
func Parse() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return c, errors.Wrap(err, "parse env")
	}
	return c, c.validate()
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case BackendRedis:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_BACKEND=postgres")
		}
	default:
		return errors.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.WorkerConcurrency < 1 {
		return errors.New("WORKER_CONCURRENCY must be at least 1")
	}
	if c.DefaultVT < 1 {
		return errors.New("DEFAULT_VISIBILITY_TIMEOUT_SEC must be positive")
	}
	return nil
}

func Load() Config {
	c, err := Parse()
	if err != nil {
		log.Fatal(err)
	}
	return c
}
