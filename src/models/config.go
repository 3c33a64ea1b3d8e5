package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	LogLevel string         `yaml:"log_level"`
	API      MAPIConfig     `yaml:"api"`
	Push     MPushConfig    `yaml:"push"`
	Storage  MStorageConfig `yaml:"storage"`
}

type MAPIConfig struct {
	BaseURL string `yaml:"base_url"`
	// RequestTimeout bounds the non-streaming calls (history endpoints).
	// The streaming request itself is bounded only by cancellation.
	RequestTimeout    int    `yaml:"timeout"`
	UserAgent         string `yaml:"user_agent"`
	HistoryWindow     int    `yaml:"history_window"`
	SimulateStreaming bool   `yaml:"simulate_streaming"`
	WordDelayMS       int    `yaml:"word_delay_ms"`
}

type MPushConfig struct {
	WSBase               string `yaml:"ws_base"`
	ConnectTimeout       int    `yaml:"connect_timeout"`
	HeartbeatInterval    int    `yaml:"heartbeat_interval"`
	ReconnectBaseDelayMS int    `yaml:"reconnect_base_delay_ms"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
}

type MStorageConfig struct {
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
}
