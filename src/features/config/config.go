package config

// Config holds the application configuration.
type Config struct {
	Telegram Telegram `yaml:"telegram"`
	Logger   Logger   `yaml:"logger"`
	Server   Server   `yaml:"server"`
	Playlist Playlist `yaml:"playlist"`
	USB      USB      `yaml:"usb"`
	Cover    Cover    `yaml:"cover"`
	Tools    Tools    `yaml:"tools"`
	Database Database `yaml:"database"`
	Jobs     Jobs     `yaml:"jobs"`
}

type Jobs struct {
	Log         bool          `yaml:"log"`
	LogPath     string        `yaml:"log_path"`
	EventBuffer int           `yaml:"event_buffer" validate:"gte=0"`
	Webhooks    WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	Command string `yaml:"command"`
}

// Playlist is the playlist file the server works on.
type Playlist struct {
	Path string `yaml:"path" validate:"required"`
}

// USB holds the copy target settings.
type USB struct {
	Root           string `yaml:"root"`
	MountRoot      string `yaml:"mount_root"`
	FATSafeNames   bool   `yaml:"fat_safe_names"`
	ASCIINames     bool   `yaml:"ascii_names"`
	BandwidthLimit int    `yaml:"bandwidth_limit" validate:"gte=0"` // bytes per second, 0 is unlimited
	PollIntervalMs int    `yaml:"poll_interval_ms" validate:"gte=0"`
	Base1024       bool   `yaml:"base_1024"`
}

// Cover holds settings for embedded cover art
type Cover struct {
	MaxSize int `yaml:"max_size" validate:"gte=0"`
	Quality int `yaml:"quality" validate:"gte=0,lte=100"`
}

// Tools holds paths to external binaries.
type Tools struct {
	FFmpeg  string `yaml:"ffmpeg"`
	FFprobe string `yaml:"ffprobe"`
}

// Database holds the configuration for the database
type Database struct {
	Path string `yaml:"path" validate:"required"`
}

// Server hold the configuration for the Fiber server Config
type Server struct {
	PrintRoutes bool   `yaml:"show_routes"`
	Port        uint32 `yaml:"port"`
}

// Logger holds the configuration for the app logging
type Logger struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=text json logfmt"`
}

type Telegram struct {
	Enabled      bool     `yaml:"enabled"`
	Token        string   `yaml:"token"`
	ChatID       int64    `yaml:"chat_id"`
	AllowedUsers []string `yaml:"allowedUsers"`
}
