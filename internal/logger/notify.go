package logger

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	botInstance *tgbotapi.BotAPI
	alertChatID int64
	once        sync.Once
)

// InitNotifier wires critical-error alerts to the admin group chat.
func InitNotifier(bot *tgbotapi.BotAPI, chatID int64) {
	once.Do(func() {
		botInstance = bot
		alertChatID = chatID
	})
}

// NotifyAdmin sends a critical alert to the admin group. Degrades silently
// when no admin group is configured.
func NotifyAdmin(msg string) {
	if botInstance == nil || alertChatID == 0 {
		return
	}
	botInstance.Send(tgbotapi.NewMessage(alertChatID, "[ALERT] "+msg))
}

// NotifyOnPanic recovers a panic, logs it and alerts the admin group.
func NotifyOnPanic(context string) {
	if r := recover(); r != nil {
		Error("panic recovered: " + context)
		NotifyAdmin("Panic in " + context + ": " + toString(r))
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if e, ok := v.(error); ok {
		return e.Error()
	}
	return "panic: unknown error"
}
