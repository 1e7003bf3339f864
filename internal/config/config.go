// Package config loads optional defaults for tubescribe from a YAML file.
// Command-line flags always win over values found here.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Default directory for downloaded audio files.
	OutputDir string `yaml:"output_dir,omitempty"`

	// Speech engine: "local" (whisper-cli) or "openai".
	Engine string `yaml:"engine,omitempty"`

	Model    string `yaml:"model,omitempty"`
	ModelDir string `yaml:"model_dir,omitempty"`
	Language string `yaml:"language,omitempty"`

	// MaxChunkSize is the byte budget per transcription request, either a
	// plain byte count or a size such as "25MiB".
	MaxChunkSize ByteSize `yaml:"max_chunk_size,omitempty"`

	// Downloader executable, e.g. "yt-dlp" or "youtube-dl".
	Downloader string `yaml:"downloader,omitempty"`

	OpenAI OpenAIConfig `yaml:"openai,omitempty"`
}

type OpenAIConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// ByteSize is a byte count read from YAML as an integer or a human size.
type ByteSize int64

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	raw := strings.TrimSpace(value.Value)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*b = ByteSize(n)
		return nil
	}

	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid size %q: %w", value.Line, raw, err)
	}
	if n > math.MaxInt64 {
		return fmt.Errorf("line %d: size %q is too large", value.Line, raw)
	}
	*b = ByteSize(n)
	return nil
}

// Load reads the config file at path. A missing file is not an error and
// yields a zero Config with found set to false.
func Load(path string) (cfg Config, found bool, err error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, false, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, true, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine)) {
	case "", "local", "openai":
	default:
		return fmt.Errorf("unknown engine %q (expected local or openai)", c.Engine)
	}
	if c.MaxChunkSize < 0 {
		return fmt.Errorf("max_chunk_size must not be negative, got %d", c.MaxChunkSize)
	}
	return nil
}
