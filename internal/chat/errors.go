package chat

import (
	"errors"
	"strings"
)

// Category classifies a getChat outcome for the reconciler and the engine.
type Category int

const (
	CategoryOK Category = iota
	CategoryDeleted
	CategoryUnreachable
	CategoryBlocked
	CategoryTransient
)

func (c Category) String() string {
	switch c {
	case CategoryOK:
		return "ok"
	case CategoryDeleted:
		return "deleted"
	case CategoryUnreachable:
		return "unreachable"
	case CategoryBlocked:
		return "blocked"
	default:
		return "transient"
	}
}

// Typed errors surfaced by the facade.
var (
	ErrDeactivated = errors.New("chat: user is deactivated")
	ErrUnreachable = errors.New("chat: chat not found")
	ErrBlocked     = errors.New("chat: bot was blocked by the user")
	ErrTransient   = errors.New("chat: transient error")
)

// Classify maps a Telegram API error to a category. Everything not
// recognized as a permanent rejection is transient: keep and retry next run.
func Classify(err error) Category {
	if err == nil {
		return CategoryOK
	}
	switch {
	case errors.Is(err, ErrDeactivated):
		return CategoryDeleted
	case errors.Is(err, ErrUnreachable):
		return CategoryUnreachable
	case errors.Is(err, ErrBlocked):
		return CategoryBlocked
	case errors.Is(err, ErrTransient):
		return CategoryTransient
	}
	return classifyAPIMessage(err.Error())
}

func classifyAPIMessage(msg string) Category {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "user is deactivated"):
		return CategoryDeleted
	case strings.Contains(m, "chat not found"),
		strings.Contains(m, "peer_id_invalid"),
		strings.Contains(m, "user not found"):
		return CategoryUnreachable
	case strings.Contains(m, "bot was blocked by the user"),
		strings.Contains(m, "bot was kicked"):
		return CategoryBlocked
	}
	return CategoryTransient
}
