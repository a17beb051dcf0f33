package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ekisa-team/anubad/internal/envvar"
)

// Settings are the process level knobs: where to listen, where the config
// lives and how to log. They come from flags, ANUBAD_* variables and .env.
type Settings struct {
	Env        string  `mapstructure:"env"`
	Host       string  `mapstructure:"host"`
	ConfigPath string  `mapstructure:"config"`
	SchemaPath string  `mapstructure:"schema"`
	ModelsPath string  `mapstructure:"models_path"`
	LogFile    string  `mapstructure:"log_file"`
	HTTPPort   int     `mapstructure:"server_http_port"`
	GRPCPort   int     `mapstructure:"server_grpc_port"`
	RateLimit  float64 `mapstructure:"rate_limit"`
	RateBurst  int     `mapstructure:"rate_burst"`
	LogToFile  bool    `mapstructure:"log_to_file"`
	Watch      bool    `mapstructure:"watch"`
}

// HTTPAddr returns the HTTP listen address.
func (s *Settings) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.HTTPPort)
}

// GRPCAddr returns the gRPC listen address.
func (s *Settings) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

// LoadDotEnv loads variables from the given .env files, ignoring missing ones.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: failed to load %s: %w", f, err)
		}
	}

	return nil
}

// NewViper returns a viper instance with defaults and ANUBAD_* env binding.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(envvar.Prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("config", filepath.Join(DefaultConfigPath(), "config.yaml"))
	v.SetDefault("schema", "")
	v.SetDefault("models_path", "")
	v.SetDefault("log_file", "logs/anubad.log")
	v.SetDefault("log_to_file", false)
	v.SetDefault("server_http_port", DefaultHTTPPort())
	v.SetDefault("server_grpc_port", DefaultGRPCPort())
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("watch", true)

	return v
}

// LoadSettings decodes the settings held by v.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("config: failed to decode settings: %w", err)
	}

	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return nil, fmt.Errorf("config: invalid HTTP port %d", s.HTTPPort)
	}
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return nil, fmt.Errorf("config: invalid gRPC port %d", s.GRPCPort)
	}

	return &s, nil
}
