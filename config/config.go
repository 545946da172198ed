package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"balancedbuy/models"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Logging       LoggingConfig       `yaml:"logging"`
	Binance       BinanceConfig       `yaml:"binance"`
	Exchange      ExchangeConfig      `yaml:"exchange"`
	Portfolio     PortfolioConfig     `yaml:"portfolio"`
	Execution     ExecutionConfig     `yaml:"execution"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type BinanceConfig struct {
	APIKey            string        `yaml:"api_key"`
	SecretKey         string        `yaml:"secret_key"`
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	DepthLimit        int           `yaml:"depth_limit"`
	RequestsPerSecond int           `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type ExchangeConfig struct {
	// ReserveAssets are the symbols normally used as a pricing base. When the
	// buy asset is one of these, the market symbol is spendAsset+buyAsset
	// instead of the usual buyAsset+spendAsset.
	ReserveAssets []string `yaml:"reserve_assets"`
}

type PortfolioConfig struct {
	Weights models.PortfolioWeights `yaml:"weights"`
}

// Policies for an allocation whose target spend falls below the market
// minimum before quantization.
const (
	PolicyAbort = "abort"
	PolicySkip  = "skip"
)

type ExecutionConfig struct {
	ConfirmToken     string `yaml:"confirm_token"`
	BelowMinNotional string `yaml:"below_min_notional"`
	SpendPrecision   int32  `yaml:"spend_precision"`
}

type NotificationsConfig struct {
	SNS SNSConfig `yaml:"sns"`
}

type SNSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	TopicArn        string `yaml:"topic_arn"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Region    string `yaml:"region"`
}

// LoadConfig reads and validates the configuration file, applying defaults
// and environment variable overrides for credentials.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Binance: BinanceConfig{
			Timeout:           10 * time.Second,
			DepthLimit:        5,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Exchange: ExchangeConfig{
			ReserveAssets: []string{"USDT", "BUSD", "USDC"},
		},
		Execution: ExecutionConfig{
			ConfirmToken:     "Y",
			BelowMinNotional: PolicyAbort,
			SpendPrecision:   8,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Credentials from the environment take precedence over the file.
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		config.Binance.APIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		config.Binance.SecretKey = strings.TrimSpace(v)
	}
	if config.Notifications.SNS.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Notifications.SNS.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Notifications.SNS.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Notifications.SNS.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("SNS_TOPIC_ARN"); v != "" {
			config.Notifications.SNS.TopicArn = strings.TrimSpace(v)
		}
	}

	for i, asset := range config.Exchange.ReserveAssets {
		config.Exchange.ReserveAssets[i] = strings.ToUpper(strings.TrimSpace(asset))
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}

	if cfg.Binance.DepthLimit <= 0 {
		return fmt.Errorf("binance.depth_limit must be greater than 0")
	}

	if cfg.Binance.RequestsPerSecond <= 0 {
		return fmt.Errorf("binance.requests_per_second must be greater than 0")
	}
	if cfg.Binance.Burst <= 0 {
		return fmt.Errorf("binance.burst must be greater than 0")
	}
	if cfg.Binance.Timeout <= 0 {
		return fmt.Errorf("binance.timeout must be greater than 0")
	}

	if cfg.Execution.ConfirmToken == "" {
		return fmt.Errorf("execution.confirm_token is required")
	}
	switch cfg.Execution.BelowMinNotional {
	case PolicyAbort, PolicySkip:
	default:
		return fmt.Errorf("execution.below_min_notional must be %q or %q", PolicyAbort, PolicySkip)
	}
	if cfg.Execution.SpendPrecision < 0 {
		return fmt.Errorf("execution.spend_precision must not be negative")
	}

	if cfg.Notifications.SNS.Enabled {
		if cfg.Notifications.SNS.TopicArn == "" {
			return fmt.Errorf("notifications.sns.topic_arn is required when SNS is enabled")
		}
		if !isValidTopicArn(cfg.Notifications.SNS.TopicArn) {
			return fmt.Errorf("notifications.sns.topic_arn '%s' is invalid", cfg.Notifications.SNS.TopicArn)
		}
		if cfg.Notifications.SNS.Region == "" {
			return fmt.Errorf("notifications.sns.region is required when SNS is enabled")
		}
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Namespace == "" {
		return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
	}

	return nil
}

var topicArnRegexp = regexp.MustCompile(`^arn:aws[a-z\-]*:sns:[a-z0-9\-]+:\d{12}:[A-Za-z0-9_\-]+$`)

func isValidTopicArn(arn string) bool {
	return topicArnRegexp.MatchString(arn)
}
