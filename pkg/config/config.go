package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"host=localhost user=postgres password=postgres dbname=mailpilot port=5432 sslmode=disable"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleProjectID    string `env:"GOOGLE_PROJECT_ID"`
	GooglePubSubTopic  string `env:"GOOGLE_PUBSUB_TOPIC"`
	// Pull subscription name; empty disables the pull receiver
	GooglePubSubSubscription string `env:"GOOGLE_PUBSUB_SUBSCRIPTION"`
	GoogleCredentials        string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	// Expected audience of Pub/Sub push OIDC tokens; empty disables verification
	PubSubPushAudience  string `env:"PUBSUB_PUSH_AUDIENCE"`
	FirebaseCredentials string `env:"FIREBASE_CREDENTIALS"`

	ClassifierURL     string        `env:"CLASSIFIER_URL"`
	ClassifierTimeout time.Duration `env:"CLASSIFIER_TIMEOUT" envDefault:"30s"`
	DispatchWorkers   int           `env:"DISPATCH_WORKERS" envDefault:"3"`
	DispatchQueueSize int           `env:"DISPATCH_QUEUE_SIZE" envDefault:"500"`

	GmailRequestsPerSecond int    `env:"GMAIL_REQUESTS_PER_SECOND" envDefault:"10"`
	LabelPrefix            string `env:"LABEL_PREFIX" envDefault:"Mailpilot"`

	BackfillMaxCount    int `env:"BACKFILL_MAX_COUNT" envDefault:"500"`
	BackfillConcurrency int `env:"BACKFILL_CONCURRENCY" envDefault:"5"`

	WatchRenewalInterval time.Duration `env:"WATCH_RENEWAL_INTERVAL" envDefault:"1h"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("could not parse configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.DBDriver)
	}
	if c.DispatchWorkers <= 0 {
		c.DispatchWorkers = 3
	}
	if c.DispatchQueueSize <= 0 {
		c.DispatchQueueSize = 500
	}
	if c.BackfillMaxCount <= 0 {
		c.BackfillMaxCount = 500
	}
	if c.BackfillConcurrency <= 0 {
		c.BackfillConcurrency = 5
	}
	return nil
}

// PubSubTopicName returns the fully qualified topic used for Gmail watch requests.
func (c *Config) PubSubTopicName() string {
	topic := c.GooglePubSubTopic
	if topic == "" {
		topic = "gmail-updates"
	}
	if strings.HasPrefix(topic, "projects/") || c.GoogleProjectID == "" {
		return topic
	}
	return fmt.Sprintf("projects/%s/topics/%s", c.GoogleProjectID, topic)
}
