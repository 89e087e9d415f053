package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Vendor is one recipient of a disbursement, with a fixed share in minor
// currency units.
type Vendor struct {
	AccountNumber string `yaml:"account_number"`
	AmountMinor   int64  `yaml:"amount_minor"`
}

type Config struct {
	Server struct {
		Addr    string `yaml:"addr"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
	Hesab struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		Email          string `yaml:"email"`
		Currency       string `yaml:"currency"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"hesab"`
	Payout struct {
		PIN     string   `yaml:"pin"`
		Cipher  string   `yaml:"cipher"`
		Vendors []Vendor `yaml:"vendors"`
	} `yaml:"payout"`
	Callback struct {
		Secret string `yaml:"secret"`
	} `yaml:"callback"`
	Admin struct {
		TokenHash string `yaml:"token_hash"`
	} `yaml:"admin"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.Server.Addr == "" {
		return nil, errors.New("server.addr is required")
	}
	if cfg.Server.BaseURL == "" {
		return nil, errors.New("server.base_url is required")
	}
	switch cfg.Storage.Driver {
	case DriverPostgres:
		if cfg.Storage.DSN == "" {
			return nil, errors.New("storage.dsn is required for the postgres driver")
		}
	case DriverSQLite:
		if cfg.Storage.Path == "" {
			return nil, errors.New("storage.path is required for the sqlite driver")
		}
	default:
		return nil, fmt.Errorf("storage.driver must be %q or %q", DriverPostgres, DriverSQLite)
	}
	if cfg.Hesab.BaseURL == "" {
		return nil, errors.New("hesab.base_url is required")
	}
	if cfg.Payout.Cipher != "aes-256-cbc" {
		return nil, fmt.Errorf("payout.cipher %q is not supported", cfg.Payout.Cipher)
	}
	for i, v := range cfg.Payout.Vendors {
		if v.AccountNumber == "" {
			return nil, fmt.Errorf("payout.vendors[%d].account_number is required", i)
		}
		if v.AmountMinor <= 0 {
			return nil, fmt.Errorf("payout.vendors[%d].amount_minor must be positive", i)
		}
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Hesab.BaseURL == "" {
		cfg.Hesab.BaseURL = "https://api.hesab.com/api/v1"
	}
	if cfg.Hesab.Currency == "" {
		cfg.Hesab.Currency = "AFN"
	}
	if cfg.Hesab.TimeoutSeconds == 0 {
		cfg.Hesab.TimeoutSeconds = 15
	}
	if cfg.Payout.Cipher == "" {
		cfg.Payout.Cipher = "aes-256-cbc"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("HESAB_BASE_URL"); v != "" {
		cfg.Hesab.BaseURL = v
	}
	if v := os.Getenv("HESAB_API_KEY"); v != "" {
		cfg.Hesab.APIKey = v
	}
	if v := os.Getenv("HESAB_EMAIL"); v != "" {
		cfg.Hesab.Email = v
	}
	if v := os.Getenv("HESAB_CURRENCY"); v != "" {
		cfg.Hesab.Currency = v
	}
	if v := os.Getenv("HESAB_TIMEOUT_SECONDS"); v != "" {
		cfg.Hesab.TimeoutSeconds = atoiOr(cfg.Hesab.TimeoutSeconds, v)
	}
	if v := os.Getenv("PAYOUT_PIN"); v != "" {
		cfg.Payout.PIN = v
	}
	if v := os.Getenv("PAYOUT_CIPHER"); v != "" {
		cfg.Payout.Cipher = v
	}
	if v := os.Getenv("CALLBACK_SECRET"); v != "" {
		cfg.Callback.Secret = v
	}
	if v := os.Getenv("ADMIN_TOKEN_HASH"); v != "" {
		cfg.Admin.TokenHash = v
	}
}

func atoiOr(fallback int, v string) int {
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
