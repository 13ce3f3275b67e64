package telegram

import (
	"context"
	"errors"
	"log/slog"
)

// Disabled is the client used when no bot token or admin chat id is
// configured. Notifications become silent no-ops and file fetches fail
// locally, so the rest of the system keeps running without Telegram.
type Disabled struct {
	logger *slog.Logger
}

// NewDisabled creates a disabled client.
func NewDisabled(logger *slog.Logger) *Disabled {
	logger.Warn("telegram not configured, notifications and photo downloads are disabled")
	return &Disabled{logger: logger}
}

func (d *Disabled) Send(chatID int64, text string) {
	d.logger.Debug("dropping notification, telegram not configured", "chat_id", chatID)
}

func (d *Disabled) SendApprovalRequest(chatID int64, text, username string) {
	d.logger.Debug("dropping approval request, telegram not configured", "username", username)
}

func (d *Disabled) Edit(chatID int64, messageID int, text string) {
	d.logger.Debug("dropping message edit, telegram not configured", "chat_id", chatID)
}

func (d *Disabled) Fetch(ctx context.Context, fileID string) (string, []byte, error) {
	return "", nil, errors.New("telegram is not configured")
}
