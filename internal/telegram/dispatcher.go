package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gallery-tg-bot/internal/batch"
	apperrors "gallery-tg-bot/internal/errors"
	"gallery-tg-bot/internal/gallery"
	"gallery-tg-bot/internal/registry"
)

// Notifier is the outbound message surface the dispatcher depends on.
// Implementations are fire and forget; failures never propagate.
type Notifier interface {
	Send(chatID int64, text string)
	SendApprovalRequest(chatID int64, text, username string)
	Edit(chatID int64, messageID int, text string)
}

// FileFetcher resolves a Telegram file id to a filename and its bytes.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) (string, []byte, error)
}

// Dispatcher routes classified webhook updates to the account registry,
// the batch store, and the chapter store. One Dispatch call per inbound
// request; the stores serialize their own mutations, so concurrent
// deliveries are safe.
type Dispatcher struct {
	registry    *registry.Registry
	batch       *batch.Store
	chapters    *gallery.Store
	notifier    Notifier
	files       FileFetcher
	adminChatID int64
	logger      *slog.Logger
}

// NewDispatcher wires up a dispatcher.
func NewDispatcher(
	reg *registry.Registry,
	batchStore *batch.Store,
	chapters *gallery.Store,
	notifier Notifier,
	files FileFetcher,
	adminChatID int64,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:    reg,
		batch:       batchStore,
		chapters:    chapters,
		notifier:    notifier,
		files:       files,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Dispatch classifies and handles a single update. It never returns an
// error: every branch ends in at most a best-effort notification, and
// storage failures are logged where they happen.
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("recovered from panic in dispatch", "panic", r)
		}
	}()

	event := Classify(update)
	switch event.Kind {
	case EventButtonPress:
		d.handleButtonPress(ctx, event)
	case EventTextCommand:
		d.handleCommand(ctx, event)
	case EventPhotoMessage:
		d.handlePhoto(ctx, event)
	case EventUnrecognized:
		d.logger.Debug("ignoring unrecognized update")
	}
}

// handleButtonPress acts on an Allow/Deny button. The press originates
// from the admin's own chat, so it is implicitly authorized. The reply
// replaces the button message, consuming the keyboard.
func (d *Dispatcher) handleButtonPress(ctx context.Context, event Event) {
	action, username, ok := strings.Cut(event.Callback, ":")
	if !ok || username == "" || (action != "allow" && action != "deny") {
		d.logger.Warn("malformed callback payload", "data", event.Callback)
		d.notifier.Edit(event.ChatID, event.MessageID, fmt.Sprintf("🤔 User '%s' not found.", username))
		return
	}

	var err error
	var reply string
	switch action {
	case "allow":
		err = d.registry.Approve(ctx, username)
		reply = fmt.Sprintf("✅ User '%s' has been approved.", username)
	case "deny":
		err = d.registry.Deny(ctx, username)
		reply = fmt.Sprintf("❌ User '%s' has been denied and removed.", username)
	}

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		// Covers a double press or a concurrent action that already
		// removed the account. Not a system error, no mutation happened.
		reply = fmt.Sprintf("🤔 User '%s' not found.", username)
	case err != nil:
		d.logger.Error("approval action failed", "error", err, "action", action, "username", username)
		reply = apperrors.GetUserMessage(err)
	}

	d.notifier.Edit(event.ChatID, event.MessageID, reply)
}

// handleCommand handles admin text commands. Anything from a non-admin
// chat is dropped without a reply so strangers learn nothing about the
// command surface.
func (d *Dispatcher) handleCommand(ctx context.Context, event Event) {
	if event.ChatID != d.adminChatID {
		d.logger.Warn("dropping command from non-admin chat", "chat_id", event.ChatID)
		return
	}

	command, args, _ := strings.Cut(event.Text, " ")
	switch command {
	case "/start_batch":
		d.handleStartBatch(ctx, event.ChatID, args)
	case "/end_batch":
		d.handleEndBatch(ctx, event.ChatID)
	case "/current_batch":
		d.handleCurrentBatch(ctx, event.ChatID)
	default:
		// Ordinary chat messages reach the webhook too; stay quiet.
	}
}

func (d *Dispatcher) handleStartBatch(ctx context.Context, chatID int64, args string) {
	chapter := strings.TrimSpace(args)
	err := d.batch.StartBatch(ctx, chapter)
	switch {
	case errors.Is(err, apperrors.ErrEmptyChapter):
		d.notifier.Send(chatID, apperrors.ErrEmptyChapter.UserMsg)
	case err != nil:
		d.logger.Error("failed to start batch", "error", err, "chapter", chapter)
		d.notifier.Send(chatID, apperrors.GetUserMessage(err))
	default:
		d.notifier.Send(chatID, fmt.Sprintf("Batch started for '%s'.", chapter))
	}
}

func (d *Dispatcher) handleEndBatch(ctx context.Context, chatID int64) {
	wasActive, err := d.batch.EndBatch(ctx)
	switch {
	case err != nil:
		d.logger.Error("failed to end batch", "error", err)
		d.notifier.Send(chatID, apperrors.GetUserMessage(err))
	case wasActive:
		d.notifier.Send(chatID, "Batch ended.")
	default:
		d.notifier.Send(chatID, "Batch mode was not active.")
	}
}

func (d *Dispatcher) handleCurrentBatch(ctx context.Context, chatID int64) {
	state, err := d.batch.Current(ctx)
	switch {
	case err != nil:
		d.logger.Error("failed to read batch state", "error", err)
		d.notifier.Send(chatID, apperrors.GetUserMessage(err))
	case state.Active:
		d.notifier.Send(chatID, fmt.Sprintf("Batch mode is ON for '%s'.", state.Chapter))
	default:
		d.notifier.Send(chatID, "Batch mode is OFF.")
	}
}

// handlePhoto ingests an admin photo into the current batch chapter.
// Deliberately no per-photo confirmation: large batches would flood the
// chat.
func (d *Dispatcher) handlePhoto(ctx context.Context, event Event) {
	if event.ChatID != d.adminChatID {
		d.logger.Warn("rejecting photo from non-admin chat", "chat_id", event.ChatID)
		d.notifier.Send(event.ChatID, apperrors.ErrUnauthorized.UserMsg)
		return
	}

	state, err := d.batch.Current(ctx)
	if err != nil {
		d.logger.Error("failed to read batch state", "error", err)
		d.notifier.Send(event.ChatID, apperrors.GetUserMessage(err))
		return
	}
	if !state.Active {
		d.notifier.Send(event.ChatID, apperrors.ErrBatchInactive.UserMsg)
		return
	}
	if state.Chapter == "" {
		// Unreachable as long as the batch store upholds its invariant.
		d.logger.Error("batch active without a target chapter")
		d.notifier.Send(event.ChatID, "Internal error: batch mode has no target chapter. Restart the batch.")
		return
	}

	filename, data, err := d.files.Fetch(ctx, event.FileID)
	if err != nil {
		d.logger.Warn("failed to fetch photo", "error", err, "file_id", event.FileID)
		d.notifier.Send(event.ChatID, apperrors.ErrFetchFailed.UserMsg)
		return
	}

	if err := d.chapters.SaveImage(state.Chapter, filename, data); err != nil {
		// The one failure class that must be operationally visible: the
		// photo was received but could not be persisted.
		d.logger.Error("failed to store image", "error", err, "chapter", state.Chapter, "filename", filename)
	}
}
