package playlists

import (
	"fmt"
	"strings"

	"github.com/contre95/usbdeck/src/music"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramHandler handles Telegram commands for the playlist
type TelegramHandler struct {
	service *Service
}

// NewTelegramHandler creates a new Telegram handler for the playlist
func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes playlist Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	if command != "playlist" {
		return fmt.Errorf("unknown playlist command: %s", command)
	}
	_, err := bot.Send(tgbotapi.NewMessage(chatID, h.summary()))
	return err
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"playlist": "Show the playlist size and destinations",
	}
}

func (h *TelegramHandler) summary() string {
	info := h.service.Info()
	var b strings.Builder
	fmt.Fprintf(&b, "🎵 %s\n\n", h.service.Path())
	fmt.Fprintf(&b, "Songs: %d\n", h.service.Len())
	fmt.Fprintf(&b, "Size: %s (%d GB stick, %.1f%% used)\n", music.FormatSize(info.TotalBytes, info.Base1024), info.USBSizeGB, info.UsagePercent)

	groups := h.service.Destinations()
	if len(groups) > 0 {
		b.WriteString("\nDestinations:\n")
	}
	for _, group := range groups {
		fmt.Fprintf(&b, "• %s (%d)\n", group.Destination, len(group.Songs))
	}
	return b.String()
}
