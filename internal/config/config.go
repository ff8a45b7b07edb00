// Package config provides the configuration schema and loader for the
// sonoscribe transcription server.
package config

import "github.com/MrWong99/sonoscribe/internal/transcript"

// Defaults applied when the corresponding field is left unset.
const (
	// DefaultListenAddr is the TCP address served when server.listen_addr
	// is empty. 9002 matches the port Konele deployments expect.
	DefaultListenAddr = ":9002"

	// DefaultSampleRate is the assumed PCM sample rate in Hz. Konele sends
	// interleaved S16LE mono at 16000; the rate is a deployment assumption
	// and is never negotiated in-band.
	DefaultSampleRate = 16000

	// DefaultMaxAudioBytes caps the audio a single session may accumulate
	// (32 MiB ≈ 17 minutes at 16 kHz mono 16-bit).
	DefaultMaxAudioBytes = 32 << 20
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Backend selects the recognition engine implementation.
type Backend string

const (
	// BackendWhisperNative runs whisper.cpp in-process via the CGO bindings.
	BackendWhisperNative Backend = "whisper-native"

	// BackendWhisper talks to a running whisper-server binary over HTTP.
	BackendWhisper Backend = "whisper"
)

// IsValid reports whether b is a recognised engine backend.
func (b Backend) IsValid() bool {
	return b == BackendWhisperNative || b == BackendWhisper
}

// Config is the root configuration structure for sonoscribe.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Engine EngineConfig `yaml:"engine"`

	// FallbackEngine, when set, is tried whenever the primary engine fails.
	// Circuit breakers skip an engine that keeps failing until it recovers.
	FallbackEngine *EngineConfig `yaml:"fallback_engine"`

	// Corrections are site-local find/replace rules applied to every raw
	// transcript, in order. Order is significant: later rules observe the
	// replacements of earlier ones.
	Corrections []transcript.Rule `yaml:"corrections"`

	// Vocabulary lists proper nouns and jargon the engine tends to mishear.
	// Transcript words that phonetically align with an entry are rewritten
	// to its canonical spelling, after all correction rules.
	Vocabulary []string `yaml:"vocabulary"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":9002").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// MaxAudioBytes caps the audio one session may accumulate. A session
	// exceeding it is closed with a policy-violation status. Zero means
	// [DefaultMaxAudioBytes].
	MaxAudioBytes int64 `yaml:"max_audio_bytes"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// EngineConfig selects and configures the recognition engine.
type EngineConfig struct {
	// Backend selects the engine implementation.
	Backend Backend `yaml:"backend"`

	// Model is the model file path for whisper-native (e.g.
	// "models/ggml-base.en.bin"), or the model name forwarded to the
	// whisper-server for the whisper backend.
	Model string `yaml:"model"`

	// ServerURL is the whisper-server address for the whisper backend
	// (e.g., "http://localhost:8080"). Ignored by whisper-native.
	ServerURL string `yaml:"server_url"`

	// Language is the BCP-47 language code for recognition. Empty means
	// the engine default ("en").
	Language string `yaml:"language"`

	// SampleRate is the assumed PCM sample rate in Hz of inbound audio.
	// Zero means [DefaultSampleRate].
	SampleRate int `yaml:"sample_rate"`
}
