package config

import (
	"errors"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeLocal represents a bundle that already lives on disk.
	SourceTypeLocal SourceType = "local"

	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// ModelTypeTranslation is the only model type served.
const ModelTypeTranslation = "translation"

// Config holds the main configuration for the application.
type Config struct {
	Version  string                 `json:"version"            yaml:"version"`
	Storage  StorageConfig          `json:"storage,omitempty"  yaml:"storage,omitempty"`
	Models   map[string]ModelConfig `json:"models"             yaml:"models"`
	Backends BackendsConfig         `json:"backends,omitempty" yaml:"backends,omitempty"`
	Services ServicesConfig         `json:"services"           yaml:"services"`
	UI       UIConfig               `json:"ui,omitempty"       yaml:"ui,omitempty"`
}

// StorageConfig holds configuration for caching and auto-download.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Source     SourceConfig   `json:"source"               yaml:"source"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Type       string         `json:"type"                 yaml:"type"`
	Backend    string         `json:"backend"              yaml:"backend"`
	Tags       []string       `json:"tags,omitempty"       yaml:"tags,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	Local       *LocalSource       `json:"local,omitempty"       yaml:"local,omitempty"`
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// BackendsConfig holds per-provider settings.
type BackendsConfig struct {
	TFServing TFServingConfig `json:"tfserving,omitempty" yaml:"tfserving,omitempty"`
	Command   CommandConfig   `json:"command,omitempty"   yaml:"command,omitempty"`
	OpenAI    OpenAIConfig    `json:"openai,omitempty"    yaml:"openai,omitempty"`
}

// TFServingConfig configures the tensorflow_model_server backend.
type TFServingConfig struct {
	BinPath    string `json:"bin_path,omitempty"    yaml:"bin_path,omitempty"`
	StagingDir string `json:"staging_dir,omitempty" yaml:"staging_dir,omitempty"`
	Port       int    `json:"port,omitempty"        yaml:"port,omitempty"`
}

// CommandConfig configures the subprocess backend.
type CommandConfig struct {
	BinPath string   `json:"bin_path,omitempty" yaml:"bin_path,omitempty"`
	Args    []string `json:"args,omitempty"     yaml:"args,omitempty"`
	Timeout string   `json:"timeout,omitempty"  yaml:"timeout,omitempty"`
}

// OpenAIConfig configures the OpenAI compatible backend.
type OpenAIConfig struct {
	BaseURL   string `json:"base_url,omitempty"    yaml:"base_url,omitempty"`
	Model     string `json:"model,omitempty"       yaml:"model,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
}

// ServicesConfig holds configuration for all services.
type ServicesConfig struct {
	Translate TranslateServiceConfig `json:"translate" yaml:"translate"`
}

// TranslateServiceConfig holds model assignments for the translate service.
type TranslateServiceConfig struct {
	Default       string   `json:"default,omitempty"         yaml:"default,omitempty"`
	Models        []string `json:"models"                    yaml:"models"`
	MaxInputRunes int      `json:"max_input_runes,omitempty" yaml:"max_input_runes,omitempty"`
}

// UIConfig holds the strings rendered by the browser and terminal UIs.
type UIConfig struct {
	Title       string    `json:"title,omitempty"       yaml:"title,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Examples    []Example `json:"examples,omitempty"    yaml:"examples,omitempty"`
}

// Example is a known Bengali phrase and its English translation.
type Example struct {
	Bengali string `json:"bengali" yaml:"bengali"`
	English string `json:"english" yaml:"english"`
}

// DefaultModel returns the model used when a request does not name one.
func (c *Config) DefaultModel() string {
	if c.Services.Translate.Default != "" {
		return c.Services.Translate.Default
	}
	if len(c.Services.Translate.Models) > 0 {
		return c.Services.Translate.Models[0]
	}
	return ""
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// LocalSource points at a bundle directory on disk.
type LocalSource struct {
	Path string `json:"path" yaml:"path"`
}

// Type returns the local source type.
func (l LocalSource) Type() SourceType {
	return SourceTypeLocal
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Subdir        string   `json:"subdir,omitempty"         yaml:"subdir,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// GetSource returns the active source for the model.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	switch {
	case m.Source.Local != nil && m.Source.HuggingFace != nil:
		return nil, errors.New("more than one source configured for model")
	case m.Source.Local != nil:
		return *m.Source.Local, nil
	case m.Source.HuggingFace != nil:
		return *m.Source.HuggingFace, nil
	}

	return nil, errors.New("no source configured for model")
}

// SetLocalSource sets the local source and clears any other.
func (m *ModelConfig) SetLocalSource(source LocalSource) {
	m.Source.Local = &source
	m.Source.HuggingFace = nil
}

// SetHuggingFaceSource sets the Hugging Face source and clears any other.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source.HuggingFace = &source
	m.Source.Local = nil
}

// Backend identifiers accepted in ModelConfig.Backend.
const (
	BackendTFServing = "tfserving"
	BackendCommand   = "command"
	BackendOpenAI    = "openai"
)

// RequiresBundle reports whether the model is executed from a local saved
// model bundle. Remote backends only need the model name.
func (m *ModelConfig) RequiresBundle() bool {
	return m.Backend != BackendOpenAI
}
