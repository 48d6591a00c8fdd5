package infra

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Transfer service modes.
const (
	TransferModeSim      = "sim"
	TransferModeExternal = "external"
)

// Config holds every application setting. Loaded from yaml, then sensitive
// values are overridden from the environment.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Transfer struct {
		Mode    string `yaml:"mode"` // "sim" or "external"
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"transfer"`

	Settlement struct {
		FeePercent decimal.Decimal `yaml:"fee_percent"` // 0 disables the fee leg
		FeeAccount string          `yaml:"fee_account"`
	} `yaml:"settlement"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}

	switch c.Transfer.Mode {
	case TransferModeSim:
	case TransferModeExternal:
		if !strings.HasPrefix(c.Transfer.BaseURL, "http://") && !strings.HasPrefix(c.Transfer.BaseURL, "https://") {
			return fmt.Errorf("invalid transfer service URL: %s", c.Transfer.BaseURL)
		}
	default:
		return fmt.Errorf("transfer mode must be %q or %q, got %q",
			TransferModeSim, TransferModeExternal, c.Transfer.Mode)
	}

	if c.Settlement.FeePercent.IsNegative() {
		return fmt.Errorf("settlement fee percent must not be negative")
	}
	if c.Settlement.FeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("settlement fee percent must not exceed 100")
	}
	if c.Settlement.FeePercent.IsPositive() && c.Settlement.FeeAccount == "" {
		return fmt.Errorf("settlement fee account is required when fee percent is set")
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("at least one kafka broker is required")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required")
		}
	}

	return nil
}

// overrideWithEnv overrides settings from environment variables when present.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("CUSTODEX_TRANSFER_API_KEY"); key != "" {
		cfg.Transfer.APIKey = key
	}
	if url := os.Getenv("CUSTODEX_TRANSFER_URL"); url != "" {
		cfg.Transfer.BaseURL = url
	}
	if path := os.Getenv("CUSTODEX_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if addr := os.Getenv("CUSTODEX_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
}
