package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the pitch rehearsal service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// VoiceProvider selects the speech stack: "openai", "mock", or "auto"
	// (openai when an API key is present, mock otherwise).
	VoiceProvider string

	// DeviceMode selects where capture and playback happen: "ws" bridges
	// audio over the client websocket, "local" drives host devices.
	DeviceMode string

	OpenAIAPIKey string

	ChatModel       string
	ChatMaxTokens   int
	ChatTemperature float64

	STTModel string

	TTSModel  string
	TTSFormat string

	CacheCapacity   int
	MinSegmentBytes int

	CompletionRetryDelay time.Duration
	SynthesisRetryDelay  time.Duration
	RecaptureDelay       time.Duration
	PlaybackSettleDelay  time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "pitchcoach"),
		AllowAnyOrigin:   false,
		VoiceProvider:    envOrDefault("VOICE_PROVIDER", "auto"),
		DeviceMode:       envOrDefault("DEVICE_MODE", "ws"),
		OpenAIAPIKey:     stringsTrimSpace("OPENAI_API_KEY"),
		ChatModel:        envOrDefault("CHAT_MODEL", "gpt-3.5-turbo-0125"),
		ChatMaxTokens:    500,
		ChatTemperature:  0.7,
		STTModel:         envOrDefault("STT_MODEL", "whisper-1"),
		TTSModel:         envOrDefault("TTS_MODEL", "tts-1"),
		// Local device mode overrides this to raw PCM so playback can
		// skip decoding.
		TTSFormat:                envOrDefault("TTS_FORMAT", "mp3"),
		CacheCapacity:            100,
		MinSegmentBytes:          8000,
		CompletionRetryDelay:     2 * time.Second,
		SynthesisRetryDelay:      time.Second,
		RecaptureDelay:           500 * time.Millisecond,
		PlaybackSettleDelay:      100 * time.Millisecond,
		DatabaseURL:              stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 2 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatMaxTokens, err = intFromEnv("CHAT_MAX_TOKENS", cfg.ChatMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatTemperature, err = floatFromEnv("CHAT_TEMPERATURE", cfg.ChatTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheCapacity, err = intFromEnv("CACHE_CAPACITY", cfg.CacheCapacity)
	if err != nil {
		return Config{}, err
	}
	cfg.MinSegmentBytes, err = intFromEnv("MIN_SEGMENT_BYTES", cfg.MinSegmentBytes)
	if err != nil {
		return Config{}, err
	}
	cfg.CompletionRetryDelay, err = durationFromEnv("COMPLETION_RETRY_DELAY", cfg.CompletionRetryDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.SynthesisRetryDelay, err = durationFromEnv("SYNTHESIS_RETRY_DELAY", cfg.SynthesisRetryDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.RecaptureDelay, err = durationFromEnv("RECAPTURE_DELAY", cfg.RecaptureDelay)
	if err != nil {
		return Config{}, err
	}
	cfg.PlaybackSettleDelay, err = durationFromEnv("PLAYBACK_SETTLE_DELAY", cfg.PlaybackSettleDelay)
	if err != nil {
		return Config{}, err
	}

	switch cfg.VoiceProvider {
	case "openai", "mock", "auto":
	default:
		return Config{}, fmt.Errorf("VOICE_PROVIDER must be one of openai, mock, auto")
	}
	switch cfg.DeviceMode {
	case "ws", "local":
	default:
		return Config{}, fmt.Errorf("DEVICE_MODE must be ws or local")
	}
	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ChatMaxTokens <= 0 {
		return Config{}, fmt.Errorf("CHAT_MAX_TOKENS must be positive")
	}
	if cfg.CacheCapacity <= 0 {
		return Config{}, fmt.Errorf("CACHE_CAPACITY must be positive")
	}
	if cfg.MinSegmentBytes < 0 {
		return Config{}, fmt.Errorf("MIN_SEGMENT_BYTES must be >= 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
