package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gallery-tg-bot/internal/config"
)

// Client wraps the Telegram Bot API for outbound calls: notifications to
// the admin chat and photo downloads. Message sends and edits are best
// effort; a failure is logged and swallowed, never returned, because
// notifications are a side channel of the workflows they report on.
type Client struct {
	api        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Telegram client. The token is verified against the
// Bot API during construction.
func NewClient(cfg config.TelegramConfig, logger *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Info("telegram client ready", "bot_username", api.Self.UserName)

	return &Client{
		api:        api,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Send posts a plain text message to chatID.
func (c *Client) Send(chatID int64, text string) {
	if _, err := c.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		c.logger.Warn("failed to send message", "error", err, "chat_id", chatID)
	}
}

// SendApprovalRequest posts text to chatID with a single row of Allow
// and Deny buttons targeting username. The callback data format
// "<action>:<username>" is what the dispatcher decodes on button press.
func (c *Client) SendApprovalRequest(chatID int64, text, username string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Allow", "allow:"+username),
			tgbotapi.NewInlineKeyboardButtonData("❌ Deny", "deny:"+username),
		),
	)
	if _, err := c.api.Send(msg); err != nil {
		c.logger.Warn("failed to send approval request", "error", err, "chat_id", chatID, "username", username)
	}
}

// Edit replaces the text of an already sent message, dropping its
// buttons. Used to consume an approval keyboard after it is acted on.
func (c *Client) Edit(chatID int64, messageID int, text string) {
	if _, err := c.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		c.logger.Warn("failed to edit message", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

// Fetch resolves a Telegram file id to its contents. Two steps: getFile
// for the remote path, then a download from the file endpoint. The
// returned filename is the base name of the remote path.
func (c *Client) Fetch(ctx context.Context, fileID string) (string, []byte, error) {
	file, err := c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", nil, fmt.Errorf("resolve file %s: %w", fileID, err)
	}
	if file.FilePath == "" {
		return "", nil, fmt.Errorf("resolve file %s: empty file path", fileID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(c.api.Token), nil)
	if err != nil {
		return "", nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("download file %s: server returned %d", fileID, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read file %s: %w", fileID, err)
	}

	return path.Base(file.FilePath), data, nil
}
