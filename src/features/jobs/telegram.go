package jobs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/contre95/usbdeck/src/features/copying"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramHandler handles Telegram commands for the jobs feature
type TelegramHandler struct {
	service *Service
}

// NewTelegramHandler creates a new Telegram handler for the jobs feature
func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes jobs-related Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	var text string
	switch command {
	case "jobs":
		text = h.listJobs()
	case "cancel", "pause", "resume":
		text = h.control(command, strings.TrimSpace(args))
	default:
		text = "❌ Unknown jobs command. Use /jobs"
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bot.Send(msg)
	return err
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"jobs":   "Show copy jobs",
		"cancel": "Cancel a copy job: /cancel <id>",
		"pause":  "Pause a copy job: /pause <id>",
		"resume": "Resume a copy job: /resume <id>",
	}
}

func (h *TelegramHandler) listJobs() string {
	jobs := h.service.GetJobs()
	if len(jobs) == 0 {
		return "📋 *No copy jobs*"
	}

	var b strings.Builder
	b.WriteString("📋 *Copy Jobs*\n\n")
	for _, job := range jobs {
		fmt.Fprintf(&b, "%s `%s` %s: %d/%d (%d%%)\n", statusEmoji(job.Status), shortID(job.ID), job.Name, job.Copied(), job.Total, job.Progress())
		if job.Error != "" {
			fmt.Fprintf(&b, "    %s\n", job.Error)
		}
	}
	return b.String()
}

// control resolves a job by id prefix, the list shows only the first characters.
func (h *TelegramHandler) control(command, prefix string) string {
	if prefix == "" {
		return fmt.Sprintf("❌ Usage: /%s <id>", command)
	}
	var matches []Job
	for _, job := range h.service.GetJobs() {
		if strings.HasPrefix(job.ID, prefix) {
			matches = append(matches, job)
		}
	}
	if len(matches) != 1 {
		return fmt.Sprintf("❌ %d jobs match `%s`", len(matches), prefix)
	}

	id := matches[0].ID
	var err error
	switch command {
	case "cancel":
		err = h.service.Cancel(id)
	case "pause":
		err = h.service.Pause(id)
	case "resume":
		err = h.service.Resume(id)
	}
	if errors.Is(err, ErrJobFinished) {
		return "ℹ️ Job already finished"
	}
	if err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("✅ %s requested for `%s`", command, shortID(id))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// statusEmoji returns emoji for job status
func statusEmoji(status copying.Status) string {
	switch status {
	case copying.StatusPending:
		return "⏳"
	case copying.StatusRunning:
		return "🔄"
	case copying.StatusPaused:
		return "⏸️"
	case copying.StatusSucceeded:
		return "✅"
	case copying.StatusFailed:
		return "❌"
	case copying.StatusCancelled:
		return "🚫"
	default:
		return "❓"
	}
}
