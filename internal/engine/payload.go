package engine

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Shop-Telegram-bot/internal/chat"
)

// NormalizePayload reduces a Telegram message to exactly one deliverable
// variant. When several attachments are present the precedence is
// document > photo > video > text. For photos the highest-resolution
// variant is picked.
func NormalizePayload(msg *tgbotapi.Message) (chat.Payload, bool) {
	if msg == nil {
		return chat.Payload{}, false
	}
	caption := msg.Caption
	switch {
	case msg.Document != nil:
		return chat.Payload{Kind: chat.PayloadDocument, FileID: msg.Document.FileID, Caption: caption}, true
	case len(msg.Photo) > 0:
		best := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width*p.Height > best.Width*best.Height {
				best = p
			}
		}
		return chat.Payload{Kind: chat.PayloadPhoto, FileID: best.FileID, Caption: caption}, true
	case msg.Video != nil:
		return chat.Payload{Kind: chat.PayloadVideo, FileID: msg.Video.FileID, Caption: caption}, true
	case msg.Text != "":
		return chat.Payload{Kind: chat.PayloadText, Text: msg.Text}, true
	}
	return chat.Payload{}, false
}
