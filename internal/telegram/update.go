package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EventKind discriminates the shapes of inbound updates the dispatcher
// cares about.
type EventKind int

const (
	// EventUnrecognized covers updates with none of the expected fields.
	// They are acknowledged and otherwise ignored.
	EventUnrecognized EventKind = iota
	// EventButtonPress is an inline keyboard callback (Allow/Deny).
	EventButtonPress
	// EventTextCommand is a plain text message.
	EventTextCommand
	// EventPhotoMessage is a message carrying a photo attachment.
	EventPhotoMessage
)

// Event is the classified form of an inbound update. Classification
// happens once at the boundary; everything downstream switches on Kind
// instead of probing the raw update for field presence.
type Event struct {
	Kind   EventKind
	ChatID int64

	// ButtonPress fields
	MessageID int    // message the pressed button is attached to
	Callback  string // raw callback data, "<action>:<username>"

	// TextCommand field
	Text string

	// PhotoMessage field
	FileID string // highest-resolution photo variant
}

// Classify maps a raw Telegram update onto an Event. Button presses win
// over messages; photo attachments win over message text.
func Classify(update tgbotapi.Update) Event {
	if q := update.CallbackQuery; q != nil && q.Message != nil && q.Message.Chat != nil {
		return Event{
			Kind:      EventButtonPress,
			ChatID:    q.Message.Chat.ID,
			MessageID: q.Message.MessageID,
			Callback:  q.Data,
		}
	}

	if m := update.Message; m != nil && m.Chat != nil {
		if len(m.Photo) > 0 {
			// Telegram orders variants low to high resolution.
			best := m.Photo[len(m.Photo)-1]
			return Event{
				Kind:   EventPhotoMessage,
				ChatID: m.Chat.ID,
				FileID: best.FileID,
			}
		}
		if m.Text != "" {
			return Event{
				Kind:   EventTextCommand,
				ChatID: m.Chat.ID,
				Text:   m.Text,
			}
		}
	}

	return Event{Kind: EventUnrecognized}
}
