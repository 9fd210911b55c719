package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WebSocketConfig holds WebSocket-specific configuration
type WebSocketConfig struct {
	WriteTimeout time.Duration // Timeout for writing messages to WebSocket
	ReadTimeout  time.Duration // Timeout for reading messages from WebSocket (keepalive)
	PingInterval time.Duration // Interval for sending ping messages
}

type Config struct {
	// Server configuration
	HTTPAddr string
	LogLevel string

	// Transcription pipeline
	TranscriptionURL string

	// Bot behaviour
	BotDisplayName string
	Headless       bool

	// Join sequence timeouts
	StepTimeout       time.Duration
	NavigationTimeout time.Duration

	// Audio capture
	AudioSampleRate   int
	AudioChunkSamples int

	// WebSocket configuration
	WebSocket WebSocketConfig
}

func Load() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("bot.display_name", "Notetaker Bot")
	v.SetDefault("bot.headless", true)
	v.SetDefault("bot.step_timeout_seconds", 30)
	v.SetDefault("bot.navigation_timeout_seconds", 60)
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.chunk_samples", 4096)
	v.SetDefault("websocket.write_timeout_seconds", 5)
	v.SetDefault("websocket.read_timeout_seconds", 180)
	v.SetDefault("websocket.ping_interval_seconds", 60)

	// Map envs
	v.BindEnv("http.addr", "HTTP_ADDR")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("transcription.url", "TRANSCRIPTION_URL")
	v.BindEnv("bot.display_name", "BOT_DISPLAY_NAME")
	v.BindEnv("bot.headless", "BOT_HEADLESS")
	v.BindEnv("bot.step_timeout_seconds", "BOT_STEP_TIMEOUT")
	v.BindEnv("bot.navigation_timeout_seconds", "BOT_NAVIGATION_TIMEOUT")
	v.BindEnv("audio.sample_rate", "AUDIO_SAMPLE_RATE")
	v.BindEnv("audio.chunk_samples", "AUDIO_CHUNK_SAMPLES")
	v.BindEnv("websocket.write_timeout_seconds", "WEBSOCKET_WRITE_TIMEOUT")
	v.BindEnv("websocket.read_timeout_seconds", "WEBSOCKET_READ_TIMEOUT")
	v.BindEnv("websocket.ping_interval_seconds", "WEBSOCKET_PING_INTERVAL")

	cfg := &Config{
		HTTPAddr:          v.GetString("http.addr"),
		LogLevel:          v.GetString("log.level"),
		TranscriptionURL:  strings.TrimSuffix(v.GetString("transcription.url"), "/"),
		BotDisplayName:    v.GetString("bot.display_name"),
		Headless:          v.GetBool("bot.headless"),
		StepTimeout:       time.Duration(v.GetInt("bot.step_timeout_seconds")) * time.Second,
		NavigationTimeout: time.Duration(v.GetInt("bot.navigation_timeout_seconds")) * time.Second,
		AudioSampleRate:   v.GetInt("audio.sample_rate"),
		AudioChunkSamples: v.GetInt("audio.chunk_samples"),
		WebSocket: WebSocketConfig{
			WriteTimeout: time.Duration(v.GetInt("websocket.write_timeout_seconds")) * time.Second,
			ReadTimeout:  time.Duration(v.GetInt("websocket.read_timeout_seconds")) * time.Second,
			PingInterval: time.Duration(v.GetInt("websocket.ping_interval_seconds")) * time.Second,
		},
	}

	return cfg
}

func (c *Config) Validate() error {
	if c.TranscriptionURL == "" {
		return ErrMissingTranscriptionURL
	}
	if c.AudioChunkSamples <= 0 || c.AudioChunkSamples&(c.AudioChunkSamples-1) != 0 {
		return ErrInvalidChunkSize
	}
	return nil
}
