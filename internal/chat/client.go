package chat

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// PayloadKind tags the single media variant a message carries.
type PayloadKind string

const (
	PayloadDocument PayloadKind = "document"
	PayloadPhoto    PayloadKind = "photo"
	PayloadVideo    PayloadKind = "video"
	PayloadText     PayloadKind = "text"
)

// Payload is the normalized form of a deliverable message: exactly one of
// document, photo, video or text, plus an optional caption.
type Payload struct {
	Kind    PayloadKind
	FileID  string // document/photo/video
	Text    string // text kind only
	Caption string
}

// Profile is the subset of chat info the core needs.
type Profile struct {
	FirstName string
	LastName  string
	Username  string
}

// IsDeleted reports the "Deleted Account" placeholder Telegram returns for
// accounts that no longer exist.
func (p *Profile) IsDeleted() bool {
	if p.FirstName == "Deleted Account" {
		return true
	}
	return p.FirstName == "" && p.LastName == "" && p.Username == ""
}

// Client is the thin facade over the chat platform used by the engine, the
// watcher and the reconciler.
type Client interface {
	SendText(chatID int64, text string) (messageID int, err error)
	SendTextMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (messageID int, err error)
	SendTextKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (messageID int, err error)
	EditText(chatID int64, messageID int, text string) error
	SendMedia(chatID int64, p Payload) (messageID int, err error)
	AnswerCallback(callbackID, text string, alert bool) error
	GetChat(userID int64) (*Profile, error)
}

// Bot implements Client over the Telegram Bot API.
type Bot struct {
	api *tgbotapi.BotAPI
}

func NewBot(api *tgbotapi.BotAPI) *Bot {
	return &Bot{api: api}
}

func (b *Bot) SendText(chatID int64, text string) (int, error) {
	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, wrapAPIError(err)
	}
	return sent.MessageID, nil
}

func (b *Bot) SendTextMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, wrapAPIError(err)
	}
	return sent.MessageID, nil
}

func (b *Bot) SendTextKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, wrapAPIError(err)
	}
	return sent.MessageID, nil
}

func (b *Bot) EditText(chatID int64, messageID int, text string) error {
	_, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	if err != nil {
		return wrapAPIError(err)
	}
	return nil
}

func (b *Bot) SendMedia(chatID int64, p Payload) (int, error) {
	var c tgbotapi.Chattable
	switch p.Kind {
	case PayloadDocument:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(p.FileID))
		doc.Caption = p.Caption
		c = doc
	case PayloadPhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(p.FileID))
		photo.Caption = p.Caption
		c = photo
	case PayloadVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(p.FileID))
		video.Caption = p.Caption
		c = video
	case PayloadText:
		text := p.Text
		if p.Caption != "" {
			text = p.Caption + "\n\n" + text
		}
		c = tgbotapi.NewMessage(chatID, text)
	default:
		return 0, fmt.Errorf("chat: unknown payload kind %q", p.Kind)
	}
	sent, err := b.api.Send(c)
	if err != nil {
		return 0, wrapAPIError(err)
	}
	return sent.MessageID, nil
}

func (b *Bot) AnswerCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	_, err := b.api.Request(cb)
	if err != nil {
		return wrapAPIError(err)
	}
	return nil
}

func (b *Bot) GetChat(userID int64) (*Profile, error) {
	info, err := b.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: userID},
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return &Profile{
		FirstName: info.FirstName,
		LastName:  info.LastName,
		Username:  info.UserName,
	}, nil
}

// wrapAPIError attaches the typed sentinel matching the API message so
// callers can use errors.Is.
func wrapAPIError(err error) error {
	switch classifyAPIMessage(err.Error()) {
	case CategoryDeleted:
		return fmt.Errorf("%w: %v", ErrDeactivated, err)
	case CategoryUnreachable:
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	case CategoryBlocked:
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
