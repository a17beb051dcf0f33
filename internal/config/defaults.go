package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	defaultHTTPPort      = 8080
	defaultGRPCPort      = 9090
	defaultMaxInputRunes = 5000

	// DefaultModelID is the id of the bundled translator model.
	DefaultModelID = "translator"

	// DefaultBundleDir is the directory the bundled model is expected in.
	DefaultBundleDir = "translator"
)

// DefaultHTTPPort returns the default HTTP port.
func DefaultHTTPPort() int {
	return defaultHTTPPort
}

// DefaultGRPCPort returns the default gRPC port.
func DefaultGRPCPort() int {
	return defaultGRPCPort
}

// DefaultMaxInputRunes returns the default input length limit.
func DefaultMaxInputRunes() int {
	return defaultMaxInputRunes
}

// DefaultConfigPath returns the default path for ANUBAD config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "anubad", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "anubad")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "anubad")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "anubad")
		}
		return filepath.Join(home, ".config", "anubad")
	}
}

// DefaultModelsPath returns the default path for ANUBAD models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "anubad", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "anubad", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "anubad", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "anubad", "models")
		}
		return filepath.Join(home, ".cache", "anubad", "models")
	}
}

// DefaultExamples returns the example phrases shown next to the input box.
func DefaultExamples() []Example {
	return []Example{
		{Bengali: "আপনি কেমন আছেন?", English: "How are you?"},
		{Bengali: "আমি বাড়িতে যাচ্ছি।", English: "I am going home."},
		{Bengali: "টম মিথ্যা কথা বললো।", English: "Tom lied."},
	}
}

// Default returns the configuration used when no config file exists:
// one translator model read from ./translator and served by tfserving.
func Default() *Config {
	cfg := &Config{
		Version: "1",
		Models: map[string]ModelConfig{
			DefaultModelID: {
				Type:    ModelTypeTranslation,
				Backend: BackendTFServing,
				Source: SourceConfig{
					Local: &LocalSource{Path: DefaultBundleDir},
				},
			},
		},
		Services: ServicesConfig{
			Translate: TranslateServiceConfig{
				Default: DefaultModelID,
				Models:  []string{DefaultModelID},
			},
		},
	}
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults fills every optional field left empty by the config file.
func (c *Config) ApplyDefaults() {
	if c.Services.Translate.MaxInputRunes <= 0 {
		c.Services.Translate.MaxInputRunes = defaultMaxInputRunes
	}
	if c.UI.Title == "" {
		c.UI.Title = "Bengali to English Translator"
	}
	if c.UI.Description == "" {
		c.UI.Description = "Enter Bengali text below to translate it to English"
	}
	if len(c.UI.Examples) == 0 {
		c.UI.Examples = DefaultExamples()
	}
	if c.Backends.TFServing.BinPath == "" {
		c.Backends.TFServing.BinPath = "tensorflow_model_server"
	}
	if c.Backends.TFServing.Port == 0 {
		c.Backends.TFServing.Port = 8501
	}
	if c.Backends.Command.Timeout == "" {
		c.Backends.Command.Timeout = "1m"
	}
	if c.Backends.OpenAI.Model == "" {
		c.Backends.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Backends.OpenAI.APIKeyEnv == "" {
		c.Backends.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
}
