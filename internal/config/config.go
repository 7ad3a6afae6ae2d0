package config

import (
	"errors"
	"strings"
	"time"

	"alcyxob/askexpert/internal/domain"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	AWS      AWSConfig      `mapstructure:"aws"`
	S3       S3Config       `mapstructure:"s3"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// AWSConfig is shared by the S3 and SQS clients.
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	S3Endpoint      string `mapstructure:"s3_endpoint"`  // MinIO / LocalStack; empty for AWS
	SQSEndpoint     string `mapstructure:"sqs_endpoint"` // LocalStack; empty for AWS
}

type S3Config struct {
	AudioBucket       string `mapstructure:"audio_bucket"`
	AttachmentsBucket string `mapstructure:"attachments_bucket"`
	PublicBaseURL     string `mapstructure:"public_base_url"` // If empty, object URLs are presigned
	UsePathStyle      bool   `mapstructure:"use_path_style"`
}

// StreamConfig configures the streaming-video backend.
type StreamConfig struct {
	APIBaseURL         string        `mapstructure:"api_base_url"`
	AccountID          string        `mapstructure:"account_id"`
	APIToken           string        `mapstructure:"api_token"`
	CustomerCode       string        `mapstructure:"customer_code"` // Playback subdomain
	MaxDurationSeconds int           `mapstructure:"max_duration_seconds"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	QueueURL string        `mapstructure:"queue_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PipelineConfig tunes the answer submission pipeline.
type PipelineConfig struct {
	AttachmentWorkers int           `mapstructure:"attachment_workers"`
	MaxAttachments    int           `mapstructure:"max_attachments"`
	ThrottleAfter     int           `mapstructure:"throttle_after"` // Batches larger than this get ThrottleDelay between uploads
	ThrottleDelay     time.Duration `mapstructure:"throttle_delay"`
	CompensateOrphans bool          `mapstructure:"compensate_orphans"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// Running on env vars and defaults only.
		err = nil
	} else if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "askexpert")

	// AutomaticEnv only sees keys viper already knows about, so every
	// env-overridable key needs a default, even an empty one.
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")
	v.SetDefault("aws.s3_endpoint", "")
	v.SetDefault("aws.sqs_endpoint", "")

	v.SetDefault("s3.audio_bucket", "")
	v.SetDefault("s3.attachments_bucket", "")
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("s3.use_path_style", true)

	v.SetDefault("stream.api_base_url", "https://api.cloudflare.com/client/v4")
	v.SetDefault("stream.account_id", "")
	v.SetDefault("stream.api_token", "")
	v.SetDefault("stream.customer_code", "")
	v.SetDefault("stream.max_duration_seconds", 3600)
	v.SetDefault("stream.timeout", "5m")

	v.SetDefault("notify.queue_url", "")
	v.SetDefault("notify.timeout", "10s")

	v.SetDefault("pipeline.attachment_workers", 3)
	v.SetDefault("pipeline.max_attachments", 10)
	v.SetDefault("pipeline.throttle_after", 5)
	v.SetDefault("pipeline.throttle_delay", "250ms")
	v.SetDefault("pipeline.compensate_orphans", true)

	v.SetDefault("jwt.secret", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return &domain.ConfigurationError{Key: "jwt.secret"}
	}
	if c.Database.URI == "" {
		return &domain.ConfigurationError{Key: "database.uri"}
	}
	return nil
}

// Validate reports whether the streaming-video backend can be used.
func (c StreamConfig) Validate() error {
	switch {
	case c.APIBaseURL == "":
		return &domain.ConfigurationError{Key: "stream.api_base_url"}
	case c.AccountID == "":
		return &domain.ConfigurationError{Key: "stream.account_id"}
	case c.APIToken == "":
		return &domain.ConfigurationError{Key: "stream.api_token"}
	case c.CustomerCode == "":
		return &domain.ConfigurationError{Key: "stream.customer_code"}
	case c.MaxDurationSeconds <= 0:
		return &domain.ConfigurationError{Key: "stream.max_duration_seconds", Reason: "must be positive"}
	}
	return nil
}

// ValidateBucket reports whether the named bucket setting is usable.
func (c S3Config) ValidateBucket(key, bucket string) error {
	if bucket == "" {
		return &domain.ConfigurationError{Key: key}
	}
	return nil
}

func (c NotifyConfig) Validate() error {
	if c.QueueURL == "" {
		return &domain.ConfigurationError{Key: "notify.queue_url"}
	}
	return nil
}
