package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources    Sources    `yaml:"sources"`
	Extraction Extraction `yaml:"extraction"`
	Dedup      Dedup      `yaml:"dedup"`
	Geocoding  Geocoding  `yaml:"geocoding"`
	Images     Images     `yaml:"images"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Sources struct {
	Feeds      []Feed     `yaml:"feeds"`
	Categories []Category `yaml:"categories"`
}

// Feed is a single RSS/Atom feed source.
type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// Category is a category/listing page crawled for article links.
type Category struct {
	URL          string `yaml:"url"`
	Name         string `yaml:"name"`
	LinkSelector string `yaml:"link_selector"`
}

type Extraction struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	OllamaURL      string `yaml:"ollama_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	OpenAIModel    string `yaml:"openai_model"`
	GeminiModel    string `yaml:"gemini_model"`
	APIKeyEnv      string `yaml:"api_key_env"`
	GeminiKeyEnv   string `yaml:"gemini_api_key_env"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// Dedup holds the similarity thresholds used by the duplicate decision.
// Values are configurable so production tuning never requires a rebuild.
type Dedup struct {
	PrimaryThreshold    float64 `yaml:"primary_threshold"`
	VenueTitleThreshold float64 `yaml:"venue_title_threshold"`
}

type Geocoding struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Images struct {
	Download    bool `yaml:"download"`
	MaxPerEvent int  `yaml:"max_per_event"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for eventscout.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "eventscout")
}

// DataDir returns the XDG data directory for eventscout.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "eventscout")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/eventscout/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'eventscout init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Extraction: Extraction{
			Provider:       "ollama",
			Model:          "qwen2.5:7b",
			OllamaURL:      "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
			OpenAIModel:    "gpt-4o-mini",
			GeminiModel:    "gemini-2.0-flash",
			APIKeyEnv:      "OPENAI_API_KEY",
			GeminiKeyEnv:   "GOOGLE_API_KEY",
			MaxTokens:      1024,
		},
		Dedup: Dedup{
			PrimaryThreshold:    0.85,
			VenueTitleThreshold: 0.5,
		},
		Geocoding: Geocoding{
			Enabled:   true,
			APIKeyEnv: "GOOGLE_MAPS_API_KEY",
		},
		Images: Images{
			Download:    true,
			MaxPerEvent: 3,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// EventsDir returns the directory that holds event collections.
func (c *Config) EventsDir() string {
	return filepath.Join(c.GetDataDir(), "events_output")
}

// LedgerPath returns the path of the processed-articles ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.GetDataDir(), "eventscout.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
