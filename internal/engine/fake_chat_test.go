package engine

import (
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Shop-Telegram-bot/internal/chat"
)

type sentText struct {
	chatID    int64
	messageID int
	text      string
}

type sentMarkup struct {
	chatID    int64
	messageID int
	text      string
	markup    tgbotapi.InlineKeyboardMarkup
}

type sentMedia struct {
	chatID  int64
	payload chat.Payload
}

// fakeChat records every outbound call and fails on demand.
type fakeChat struct {
	mu     sync.Mutex
	nextID int

	texts   []sentText
	markups []sentMarkup
	media   []sentMedia
	edits   []sentText

	failText   map[int64]error
	failMarkup map[int64]error
	failMedia  map[int64]error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		failText:   make(map[int64]error),
		failMarkup: make(map[int64]error),
		failMedia:  make(map[int64]error),
	}
}

func (f *fakeChat) SendText(chatID int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failText[chatID]; err != nil {
		return 0, err
	}
	f.nextID++
	f.texts = append(f.texts, sentText{chatID, f.nextID, text})
	return f.nextID, nil
}

func (f *fakeChat) SendTextMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failMarkup[chatID]; err != nil {
		return 0, err
	}
	f.nextID++
	f.markups = append(f.markups, sentMarkup{chatID, f.nextID, text, markup})
	return f.nextID, nil
}

func (f *fakeChat) SendTextKeyboard(chatID int64, text string, _ tgbotapi.ReplyKeyboardMarkup) (int, error) {
	return f.SendText(chatID, text)
}

func (f *fakeChat) EditText(chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentText{chatID, messageID, text})
	return nil
}

func (f *fakeChat) SendMedia(chatID int64, p chat.Payload) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failMedia[chatID]; err != nil {
		return 0, err
	}
	f.nextID++
	f.media = append(f.media, sentMedia{chatID, p})
	return f.nextID, nil
}

func (f *fakeChat) AnswerCallback(string, string, bool) error { return nil }

func (f *fakeChat) GetChat(int64) (*chat.Profile, error) {
	return &chat.Profile{FirstName: "Test"}, nil
}

func (f *fakeChat) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.texts {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

func (f *fakeChat) lastTextTo(chatID int64) string {
	all := f.textsTo(chatID)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

func (f *fakeChat) markupsTo(chatID int64) []sentMarkup {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMarkup
	for _, m := range f.markups {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeChat) mediaTo(chatID int64) []sentMedia {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMedia
	for _, m := range f.media {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func containsText(all []string, substr string) bool {
	for _, s := range all {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}
