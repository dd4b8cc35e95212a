package hosting

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/contre95/usbdeck/src/features/config"
	"github.com/contre95/usbdeck/src/features/jobs"
	"github.com/contre95/usbdeck/src/features/playlists"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramCommandHandler interface that each feature implements
type TelegramCommandHandler interface {
	HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error
	GetCommands() map[string]string // Returns command -> description mapping
}

// TelegramBot handles Telegram bot operations
type TelegramBot struct {
	bot      *tgbotapi.BotAPI
	config   *config.Manager
	handlers map[string]TelegramCommandHandler
	commands map[string]string // command -> feature
	updates  tgbotapi.UpdatesChannel
	stopChan chan struct{}
}

// NewTelegramBot creates a new Telegram bot instance
func NewTelegramBot(cfg *config.Manager, playlistService *playlists.Service, jobService *jobs.Service) (*TelegramBot, error) {
	telegramConfig := cfg.Get().Telegram

	if !telegramConfig.Enabled {
		return nil, fmt.Errorf("telegram bot is disabled in configuration")
	}

	if telegramConfig.Token == "" {
		return nil, fmt.Errorf("telegram bot token is not configured")
	}

	bot, err := tgbotapi.NewBotAPI(telegramConfig.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot initialized", "username", bot.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	telegramBot := &TelegramBot{
		bot:      bot,
		config:   cfg,
		handlers: make(map[string]TelegramCommandHandler),
		commands: make(map[string]string),
		updates:  bot.GetUpdatesChan(updateConfig),
		stopChan: make(chan struct{}),
	}

	telegramBot.RegisterHandler("config", config.NewTelegramHandler(cfg))
	telegramBot.RegisterHandler("jobs", jobs.NewTelegramHandler(jobService))
	telegramBot.RegisterHandler("playlists", playlists.NewTelegramHandler(playlistService))

	return telegramBot, nil
}

// RegisterHandler registers a feature's command handler and the commands it answers
func (t *TelegramBot) RegisterHandler(feature string, handler TelegramCommandHandler) {
	t.handlers[feature] = handler
	for command := range handler.GetCommands() {
		t.commands[command] = feature
	}
	slog.Debug("Registered Telegram handler", "feature", feature)
}

// Start begins listening for Telegram updates
func (t *TelegramBot) Start() {
	slog.Info("Starting Telegram bot listener")

	for {
		select {
		case update := <-t.updates:
			if update.Message != nil {
				go t.handleMessage(update)
			}
			if update.CallbackQuery != nil {
				go t.handleCallbackQuery(update)
			}
		case <-t.stopChan:
			slog.Info("Stopping Telegram bot listener")
			t.bot.StopReceivingUpdates()
			return
		}
	}
}

// Stop gracefully stops the bot
func (t *TelegramBot) Stop() {
	close(t.stopChan)
}

// Notify sends a message to the configured chat. It does nothing when no chat is configured.
func (t *TelegramBot) Notify(text string) error {
	chatID := t.config.Get().Telegram.ChatID
	if chatID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(chatID, t.escapeMarkdown(text))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	_, err := t.bot.Send(msg)
	return err
}

// handleMessage processes incoming messages
func (t *TelegramBot) handleMessage(update tgbotapi.Update) {
	message := update.Message
	chatID := message.Chat.ID

	if len(t.config.Get().Telegram.AllowedUsers) == 0 {
		slog.Warn("No allowed users configured", "chat_id", chatID)
		t.sendMessage(chatID, "❌ Access denied: No users configured. Please add users to the config.")
		return
	}
	if !t.authorized(message.From) {
		slog.Warn("Unauthorized user", "chat_id", chatID)
		t.sendMessage(chatID, "Unknown user, please add your user to the config")
		return
	}

	if message.IsCommand() {
		t.handleCommand(message)
		return
	}

	t.sendMessage(chatID, "🤖 Send /menu or /help to see available options")
}

// authorized reports whether the sender is in telegram.allowedUsers. Users without a
// username are matched by their full name.
func (t *TelegramBot) authorized(user *tgbotapi.User) bool {
	if user == nil {
		return false
	}
	username := user.UserName
	if username == "" {
		username = user.FirstName
		if user.LastName != "" {
			username += " " + user.LastName
		}
	}
	return slices.Contains(t.config.Get().Telegram.AllowedUsers, username)
}

// handleCommand processes bot commands
func (t *TelegramBot) handleCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	command := message.Command()
	args := message.CommandArguments()

	slog.Debug("Processing command", "command", command, "args", args, "chat_id", chatID)

	switch command {
	case "help", "start", "menu":
		t.handleHelp(chatID)
	default:
		if err := t.routeCommand(command, args, chatID); err != nil {
			slog.Error("Failed to handle command", "command", command, "error", err)
			t.sendMessage(chatID, "❌ Failed to process command")
		}
	}
}

// routeCommand routes commands to the appropriate feature handler
func (t *TelegramBot) routeCommand(command, args string, chatID int64) error {
	feature, exists := t.commands[command]
	if !exists {
		t.sendMessage(chatID, "❌ Unknown command. Send /help to see available commands.")
		return nil
	}
	return t.handlers[feature].HandleCommand(t.bot, chatID, command, args)
}

// escapeMarkdown escapes special characters for MarkdownV2
func (t *TelegramBot) escapeMarkdown(text string) string {
	var b strings.Builder
	for _, r := range text {
		if strings.ContainsRune("_*[]()~`>#+-=|{}.!\\", r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sendMessage sends a message to the specified chat
func (t *TelegramBot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		slog.Error("Failed to send message", "error", err, "chat_id", chatID)
	}
}

// helpText lists every registered command.
func (t *TelegramBot) helpText() string {
	names := make([]string, 0, len(t.commands))
	for command := range t.commands {
		names = append(names, command)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("🤖 usbdeck\n\n")
	for _, command := range names {
		description := t.handlers[t.commands[command]].GetCommands()[command]
		fmt.Fprintf(&b, "/%s - %s\n", command, description)
	}
	return b.String()
}

// handleHelp shows the command list with a shortcut keyboard
func (t *TelegramBot) handleHelp(chatID int64) {
	buttons := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🎵 Playlist", "menu_playlist"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Jobs", "menu_jobs"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Config", "menu_config"),
		},
	}

	msg := tgbotapi.NewMessage(chatID, t.helpText())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	if _, err := t.bot.Send(msg); err != nil {
		slog.Error("Failed to send menu", "error", err, "chat_id", chatID)
	}
}

// handleCallbackQuery handles the menu keyboard
func (t *TelegramBot) handleCallbackQuery(update tgbotapi.Update) {
	callback := update.CallbackQuery
	t.bot.Request(tgbotapi.NewCallback(callback.ID, ""))
	if callback.Message == nil || !t.authorized(callback.From) {
		return
	}

	command, ok := strings.CutPrefix(callback.Data, "menu_")
	if !ok {
		return
	}
	if err := t.routeCommand(command, "", callback.Message.Chat.ID); err != nil {
		slog.Error("Failed to handle menu command", "command", command, "error", err)
		t.sendMessage(callback.Message.Chat.ID, "❌ Failed to process menu selection")
	}
}
