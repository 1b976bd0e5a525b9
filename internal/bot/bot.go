package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"Shop-Telegram-bot/internal/logger"
)

// StartBotWithInstance runs the long-polling loop with the given bot
// instance. One handler task is spawned per inbound update; the loop itself
// only stops on context cancellation.
func StartBotWithInstance(ctx context.Context, api *tgbotapi.BotAPI, router *Router) {
	logger.Info("authorized", zap.String("account", api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go router.HandleUpdate(ctx, update)
		}
	}
}
