package config

// createDefaultConfig creates a new Config with sensible default values
func createDefaultConfig() *Config {
	return &Config{
		Telegram: Telegram{
			Enabled:      false,
			Token:        "", // Can be obtained with https://t.me/BotFather
			ChatID:       0,
			AllowedUsers: []string{"<your_telegram_username>"}, // No @
		},
		Logger: Logger{
			Enabled: true,
			Level:   "info",
			Format:  "text",
		},
		Server: Server{
			PrintRoutes: false,
			Port:        3636,
		},
		Playlist: Playlist{
			Path: "./playlist.m3u",
		},
		USB: USB{
			Root:           "",
			MountRoot:      "/media",
			FATSafeNames:   false,
			ASCIINames:     false,
			BandwidthLimit: 0,
			PollIntervalMs: 100,
			Base1024:       true,
		},
		Cover: Cover{
			MaxSize: 0,
			Quality: 85,
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Database: Database{
			Path: "./usbdeck.db",
		},
		Jobs: Jobs{
			Log:         true,
			LogPath:     "./logs/jobs",
			EventBuffer: 16,
			Webhooks: WebhookConfig{
				Enabled: false,
				Command: "",
			},
		},
	}
}
