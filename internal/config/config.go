// Package config loads service settings from defaults, an optional
// config.yaml, a .env file and PDFVIEW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "PDFVIEW"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Viewport  ViewportConfig  `mapstructure:"viewport"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// SettleTimeout bounds how long a surface request waits for a render.
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
}

// DocumentsConfig describes where documents come from. Root plays the role of
// the host's public directory: "/pdfs/paystub.pdf" is read from
// <Root>/pdfs/paystub.pdf and served under the same path.
type DocumentsConfig struct {
	Root     string `mapstructure:"root"`
	Default  string `mapstructure:"default"`
	MaxBytes int64  `mapstructure:"max_bytes"`
	// AllowedHosts are the hosts http(s) locations may name. Empty disables
	// remote documents.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

type EngineConfig struct {
	Name    string  `mapstructure:"name"`
	DPI     float64 `mapstructure:"dpi"`
	Workers int     `mapstructure:"workers"`
}

type ViewportConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	ServiceName string `mapstructure:"service_name"`
	AddSource   bool   `mapstructure:"add_source"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.settle_timeout", 30*time.Second)

	v.SetDefault("documents.root", "./public")
	v.SetDefault("documents.default", "/pdfs/paystub.pdf")
	v.SetDefault("documents.max_bytes", int64(64<<20))
	v.SetDefault("documents.allowed_hosts", []string{})

	v.SetDefault("engine.name", "outline")
	v.SetDefault("engine.dpi", 96.0)
	v.SetDefault("engine.workers", 2)

	v.SetDefault("viewport.width", 1280)
	v.SetDefault("viewport.height", 800)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "pdfview")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
}

// Load reads configuration into v and decodes it. An empty file means
// ./config.yaml if present. A missing .env file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Plain names kept for deployments that predate the prefix.
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("documents.root", EnvPrefix+"_DOCUMENTS_ROOT", "DATA_ROOT")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Documents.Root == "" {
		errs = append(errs, errors.New("documents.root is required"))
	}
	if strings.TrimSpace(c.Documents.Default) == "" {
		errs = append(errs, errors.New("documents.default is required"))
	}
	if c.Engine.Name == "" {
		errs = append(errs, errors.New("engine.name is required"))
	}
	if c.Engine.DPI < 0 || c.Engine.DPI > 1200 {
		errs = append(errs, fmt.Errorf("engine.dpi %v out of range (0-1200)", c.Engine.DPI))
	}
	if c.Engine.Workers < 1 {
		errs = append(errs, errors.New("engine.workers must be at least 1"))
	}
	if c.Viewport.Width < 1 || c.Viewport.Height < 1 {
		errs = append(errs, fmt.Errorf("viewport %dx%d must be positive", c.Viewport.Width, c.Viewport.Height))
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logger.format %q must be console or json", c.Logger.Format))
	}
	return errors.Join(errs...)
}
