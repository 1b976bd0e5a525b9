package engine

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Shop-Telegram-bot/internal/chat"
)

func TestNormalizePayloadPrecedence(t *testing.T) {
	doc := &tgbotapi.Document{FileID: "doc1"}
	video := &tgbotapi.Video{FileID: "vid1"}
	photos := []tgbotapi.PhotoSize{{FileID: "small", Width: 90, Height: 60}}

	cases := []struct {
		name     string
		msg      *tgbotapi.Message
		wantKind chat.PayloadKind
		wantID   string
	}{
		{"document beats everything", &tgbotapi.Message{Document: doc, Photo: photos, Video: video, Text: "x"}, chat.PayloadDocument, "doc1"},
		{"photo beats video", &tgbotapi.Message{Photo: photos, Video: video}, chat.PayloadPhoto, "small"},
		{"video beats text", &tgbotapi.Message{Video: video, Text: "x"}, chat.PayloadVideo, "vid1"},
		{"text only", &tgbotapi.Message{Text: "hello"}, chat.PayloadText, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, ok := NormalizePayload(tc.msg)
			if !ok {
				t.Fatal("message did not normalize")
			}
			if p.Kind != tc.wantKind || p.FileID != tc.wantID {
				t.Fatalf("got kind=%q file=%q, want kind=%q file=%q", p.Kind, p.FileID, tc.wantKind, tc.wantID)
			}
		})
	}
}

func TestNormalizePayloadPicksLargestPhoto(t *testing.T) {
	msg := &tgbotapi.Message{
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 60},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		},
		Caption: "receipt",
	}
	p, ok := NormalizePayload(msg)
	if !ok {
		t.Fatal("message did not normalize")
	}
	if p.FileID != "large" {
		t.Fatalf("picked %q, want the highest-resolution variant", p.FileID)
	}
	if p.Caption != "receipt" {
		t.Fatalf("caption = %q, want carried over", p.Caption)
	}
}

func TestNormalizePayloadRejectsEmpty(t *testing.T) {
	if _, ok := NormalizePayload(nil); ok {
		t.Fatal("nil message must not normalize")
	}
	if _, ok := NormalizePayload(&tgbotapi.Message{Sticker: &tgbotapi.Sticker{FileID: "s"}}); ok {
		t.Fatal("unsupported attachment must not normalize")
	}
}
