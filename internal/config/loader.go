package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_audio_bytes %d must not be negative", cfg.Server.MaxAudioBytes))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when server.tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when server.tls is set"))
		}
	}

	// Engines
	errs = append(errs, validateEngine("engine", cfg.Engine)...)
	if cfg.FallbackEngine != nil {
		errs = append(errs, validateEngine("fallback_engine", *cfg.FallbackEngine)...)
	}

	// Corrections: every pattern must compile. Application order is part of
	// the contract, so a bad rule is rejected at startup instead of skipped.
	for i, rule := range cfg.Corrections {
		if rule.Pattern == "" {
			errs = append(errs, fmt.Errorf("corrections[%d].pattern is required", i))
			continue
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("corrections[%d].pattern %q does not compile: %w", i, rule.Pattern, err))
		}
	}

	return errors.Join(errs...)
}

// validateEngine checks one engine section. prefix names the YAML section
// in error messages ("engine" or "fallback_engine").
func validateEngine(prefix string, e EngineConfig) []error {
	var errs []error
	if e.Backend != "" && !e.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("%s.backend %q is invalid; valid values: whisper-native, whisper", prefix, e.Backend))
	}
	if e.Backend == BackendWhisperNative && e.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required when %s.backend is whisper-native", prefix, prefix))
	}
	if e.Backend == BackendWhisper && e.ServerURL == "" {
		errs = append(errs, fmt.Errorf("%s.server_url is required when %s.backend is whisper", prefix, prefix))
	}
	if e.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("%s.sample_rate %d must not be negative", prefix, e.SampleRate))
	}
	return errs
}
