// Package config loads the YAML configuration shared by the scribe commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Recognizer backends.
const (
	BackendDaemon = "daemon"
	BackendVosk   = "vosk"
)

type Config struct {
	Recognizer struct {
		Backend string `yaml:"backend"`
		Locale  string `yaml:"locale"`
		Device  string `yaml:"device"`
		Socket  string `yaml:"socket"`
		Vosk    struct {
			ServerURL      string        `yaml:"server_url"`
			SampleRate     int           `yaml:"sample_rate"`
			SilenceTimeout time.Duration `yaml:"silence_timeout"`
		} `yaml:"vosk"`
	} `yaml:"recognizer"`

	Transcript struct {
		Separator       string        `yaml:"separator"`
		RestartDelay    time.Duration `yaml:"restart_delay"`
		MaxRestartDelay time.Duration `yaml:"max_restart_delay"`
	} `yaml:"transcript"`

	Recording struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
	} `yaml:"recording"`

	Handoff struct {
		Database  string `yaml:"database"`
		Clipboard bool   `yaml:"clipboard"`
		Redis     struct {
			Addr     string        `yaml:"addr"`
			Password string        `yaml:"password"`
			DB       int           `yaml:"db"`
			Prefix   string        `yaml:"prefix"`
			TTL      time.Duration `yaml:"ttl"`
		} `yaml:"redis"`
	} `yaml:"handoff"`

	Notes struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		APIKeyEnv string `yaml:"api_key_env"`
		Template  string `yaml:"template"`
	} `yaml:"notes"`
}

// Default returns the configuration used when no file is given. Keys missing
// from a loaded file keep these values.
func Default() *Config {
	c := &Config{}
	c.Recognizer.Backend = BackendDaemon
	c.Recognizer.Locale = "en-US"
	c.Recognizer.Vosk.ServerURL = "ws://localhost:2700"
	c.Recognizer.Vosk.SampleRate = 16000
	c.Recognizer.Vosk.SilenceTimeout = 8 * time.Second

	c.Transcript.Separator = " "
	c.Transcript.RestartDelay = 100 * time.Millisecond
	c.Transcript.MaxRestartDelay = 5 * time.Second

	home, _ := os.UserHomeDir()
	c.Recording.Dir = filepath.Join(home, ".scribe", "recordings")
	c.Handoff.Database = filepath.Join(home, ".scribe", "scribe.db")
	c.Handoff.Redis.Prefix = "scribe:session:"
	c.Handoff.Redis.TTL = 24 * time.Hour

	c.Notes.BaseURL = "https://openrouter.ai/api/v1"
	c.Notes.Model = "anthropic/claude-3-haiku"
	c.Notes.APIKeyEnv = "OPENROUTER_API_KEY"
	return c
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	switch c.Recognizer.Backend {
	case BackendDaemon:
	case BackendVosk:
		if c.Recognizer.Vosk.ServerURL == "" {
			errs = append(errs, errors.New("recognizer.vosk.server_url is required for the vosk backend"))
		}
		if c.Recognizer.Vosk.SampleRate <= 0 {
			errs = append(errs, fmt.Errorf("recognizer.vosk.sample_rate must be positive, got %d", c.Recognizer.Vosk.SampleRate))
		}
	default:
		errs = append(errs, fmt.Errorf("recognizer.backend %q is not one of %s, %s", c.Recognizer.Backend, BackendDaemon, BackendVosk))
	}
	if c.Transcript.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("transcript.restart_delay must not be negative, got %s", c.Transcript.RestartDelay))
	}
	if c.Transcript.MaxRestartDelay > 0 && c.Transcript.MaxRestartDelay < c.Transcript.RestartDelay {
		errs = append(errs, fmt.Errorf("transcript.max_restart_delay %s is below restart_delay %s", c.Transcript.MaxRestartDelay, c.Transcript.RestartDelay))
	}
	if c.Handoff.Redis.Addr != "" && c.Handoff.Redis.TTL <= 0 {
		errs = append(errs, errors.New("handoff.redis.ttl must be positive when redis is enabled"))
	}
	return errors.Join(errs...)
}
