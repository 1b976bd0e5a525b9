package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Shop-Telegram-bot/internal/admin"
)

func GetReplyKeyboard(userID int64) tgbotapi.ReplyKeyboardMarkup {
	if admin.IsAdmin(userID) {
		return tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/products"),
				tgbotapi.NewKeyboardButton("/orders"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/merger"),
				tgbotapi.NewKeyboardButton("/ledger"),
				tgbotapi.NewKeyboardButton("/poke"),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/products"),
			tgbotapi.NewKeyboardButton("/orders"),
		),
	)
}
