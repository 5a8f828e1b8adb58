package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Gate     GateConfig     `mapstructure:"gate"`
	Export   ExportConfig   `mapstructure:"export"`
	Brand    BrandConfig    `mapstructure:"brand"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
}

// DatabaseConfig holds the local key-value database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// GateConfig holds access gate timing
type GateConfig struct {
	VerifyDelay time.Duration `mapstructure:"verify_delay"`
}

// ExportConfig holds image export configuration
type ExportConfig struct {
	OutputDir string        `mapstructure:"output_dir"`
	Scale     int           `mapstructure:"scale"`
	Delay     time.Duration `mapstructure:"delay"`
}

// BrandConfig holds the branding printed on invoices
type BrandConfig struct {
	Name     string   `mapstructure:"name"`
	Currency string   `mapstructure:"currency"`
	Terms    []string `mapstructure:"terms"`
	Footer   string   `mapstructure:"footer"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads an optional .env file, the optional YAML file at configPath and
// INVOICE_DESK_* environment variables, in increasing precedence. An empty
// or missing config file leaves the defaults in place.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("INVOICE_DESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.session_ttl", 12*time.Hour)

	v.SetDefault("database.path", "data/invoice-desk.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("gate.verify_delay", 800*time.Millisecond)

	v.SetDefault("export.output_dir", "exports")
	v.SetDefault("export.scale", 2)
	v.SetDefault("export.delay", 300*time.Millisecond)

	v.SetDefault("brand.name", "G Te Goyna")
	v.SetDefault("brand.currency", "Tk")
	v.SetDefault("brand.terms", []string{
		"The jewellery contains 3 years colour guarantee.",
		"Please Check infront of delivery man and then pay the rest amount.",
		"Complaints will not be accepted once the delivery personnel have left.",
	})
	v.SetDefault("brand.footer", "Thank you for your purchase! We appreciate your support.")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "console")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir is required")
	}
	if c.Export.Scale < 1 || c.Export.Scale > 4 {
		return fmt.Errorf("export.scale must be between 1 and 4: %d", c.Export.Scale)
	}
	if strings.TrimSpace(c.Brand.Name) == "" {
		return fmt.Errorf("brand.name is required")
	}
	if c.Gate.VerifyDelay < 0 || c.Export.Delay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}
