package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string `yaml:"addr"`
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"` // json, console
	CORSAllowOrigin string `yaml:"cors_allow_origin"`
	Title           string `yaml:"title"`

	// Broker event queue depth. Agents block on submit once it is full.
	EventQueueSize int `yaml:"event_queue_size"`
	// Per-connection outbound buffers, in messages.
	AgentSendBuffer  int `yaml:"agent_send_buffer"`
	ViewerSendBuffer int `yaml:"viewer_send_buffer"`
	// Largest message accepted from an agent (frames included).
	AgentReadLimit int64 `yaml:"agent_read_limit"`

	// Drop frames from connections not bound to the current selection.
	RejectStaleFrames bool `yaml:"reject_stale_frames"`
	// Initial tile width in percent of the row.
	DefaultImageWidth int `yaml:"default_image_width"`

	SocketIOEnabled bool `yaml:"socketio_enabled"`
}

func Default() Config {
	return Config{
		Addr:              ":8091",
		LogLevel:          "info",
		LogFormat:         "json",
		CORSAllowOrigin:   "*",
		Title:             "TARS Capture",
		EventQueueSize:    256,
		AgentSendBuffer:   16,
		ViewerSendBuffer:  64,
		AgentReadLimit:    16 << 20,
		DefaultImageWidth: 24,
		SocketIOEnabled:   true,
	}
}

// Load builds a Config from defaults, then the YAML file at path (skipped when
// path is empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.CORSAllowOrigin = getEnv("CORS_ALLOW_ORIGIN", cfg.CORSAllowOrigin)
	cfg.Title = getEnv("TITLE", cfg.Title)
	cfg.EventQueueSize = getEnvInt("EVENT_QUEUE_SIZE", cfg.EventQueueSize)
	cfg.AgentSendBuffer = getEnvInt("AGENT_SEND_BUFFER", cfg.AgentSendBuffer)
	cfg.ViewerSendBuffer = getEnvInt("VIEWER_SEND_BUFFER", cfg.ViewerSendBuffer)
	cfg.AgentReadLimit = int64(getEnvInt("AGENT_READ_LIMIT", int(cfg.AgentReadLimit)))
	cfg.DefaultImageWidth = getEnvInt("DEFAULT_IMAGE_WIDTH", cfg.DefaultImageWidth)
	cfg.RejectStaleFrames = getEnvBool("REJECT_STALE_FRAMES", cfg.RejectStaleFrames)
	cfg.SocketIOEnabled = getEnvBool("SOCKETIO_ENABLE", cfg.SocketIOEnabled)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if c.EventQueueSize < 1 {
		return fmt.Errorf("event_queue_size must be positive, got %d", c.EventQueueSize)
	}
	if c.AgentSendBuffer < 1 || c.ViewerSendBuffer < 1 {
		return fmt.Errorf("send buffers must be positive")
	}
	if c.AgentReadLimit < 1024 {
		return fmt.Errorf("agent_read_limit too small: %d", c.AgentReadLimit)
	}
	if c.DefaultImageWidth < 10 || c.DefaultImageWidth > 100 {
		return fmt.Errorf("default_image_width must be within 10..100, got %d", c.DefaultImageWidth)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "1", "true":
		return true
	case "0", "false":
		return false
	}
	return def
}
