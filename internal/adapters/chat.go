package adapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/charmbracelet/log"
)

// ChatPost is one new audio post observed in the monitored channel.
// Posts where SenderIsSelf is true must be ignored by the caller — they
// are the bot's own uploads echoing back through the channel feed.
type ChatPost struct {
	MessageID int64
	AudioFileID string
	AudioFileUniqueID string
	Title *string
	Performer *string
	FileName *string
	DurationSeconds *int
	SenderIsSelf bool
}

// ChatAdapter is the chat-channel adapter (TG) capability contract.
type ChatAdapter interface {
	DownloadFile(ctx context.Context, fileID string) (localPath string, err error)
	SendAudio(ctx context.Context, path string, title, performer *string, duration *int, caption string) (messageID int64, err error)
	Cleanup(path string)
	// Posts returns a channel delivering every new audio post in the
	// configured channel. Closed when ctx is done.
	Posts(ctx context.Context) <-chan ChatPost
}

// TelegramAdapter implements ChatAdapter over the Telegram Bot API.
//
// Out-of-pack dependency (see the full design): github.com/go-telegram-bot-api/telegram-bot-api/v5.
type TelegramAdapter struct {
	bot *tgbotapi.BotAPI
	channelID int64
	downloadDir string
	logger *log.Logger
}

// NewTelegramAdapter creates a TelegramAdapter bound to a single monitored
// channel. botToken authenticates the bot; channelID is the monitored
// channel, which is also the upload destination.
func NewTelegramAdapter(botToken string, channelID int64, downloadDir string, logger *log.Logger) (*TelegramAdapter, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	if downloadDir == "" {
		downloadDir = os.TempDir()
	}
	return &TelegramAdapter{bot: bot, channelID: channelID, downloadDir: downloadDir, logger: logger}, nil
}

// DownloadFile resolves a TG file id to a local path and downloads it,
// retrying transport failures.
func (a *TelegramAdapter) DownloadFile(ctx context.Context, fileID string) (string, error) {
	var localPath string
	err := WithRetry(ctx, func() error {
		file, err := a.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
		if err != nil {
			return fmt.Errorf("failed to resolve file: %w", err)
		}

		url := file.Link(a.bot.Token)
		dest := filepath.Join(a.downloadDir, filepath.Base(file.FilePath))

		if err := downloadURL(ctx, url, dest); err != nil {
			return fmt.Errorf("failed to download file: %w", err)
		}
		localPath = dest
		return nil
	})
	return localPath, err
}

// SendAudio uploads an audio file to the configured channel, returning
// the resulting message id.
func (a *TelegramAdapter) SendAudio(ctx context.Context, path string, title, performer *string, duration *int, caption string) (int64, error) {
	var messageID int64
	err := WithRetry(ctx, func() error {
		msg := tgbotapi.NewAudio(a.channelID, tgbotapi.FilePath(path))
		msg.Caption = caption
		if title != nil {
			msg.Title = *title
		}
		if performer != nil {
			msg.Performer = *performer
		}
		if duration != nil {
			msg.Duration = *duration
		}

		sent, err := a.bot.Send(msg)
		if err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
		messageID = int64(sent.MessageID)
		return nil
	})
	return messageID, err
}

// Cleanup removes a downloaded or staged file, logging failures rather
// than propagating them — a leaked temp file is not worth failing a cycle over.
func (a *TelegramAdapter) Cleanup(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("failed to clean up temp file", "path", path, "error", err)
	}
}

// Posts streams new channel audio posts via long-polling updates,
// translating each into a ChatPost and marking the bot's own uploads via
// SenderIsSelf so callers can ignore their own echoes.
func (a *TelegramAdapter) Posts(ctx context.Context) <-chan ChatPost {
	out := make(chan ChatPost)

	go func() {
		defer close(out)

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updates := a.bot.GetUpdatesChan(u)

		self := a.bot.Self.ID

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				post, ok := postFromUpdate(update, a.channelID, self)
				if !ok {
					continue
				}
				select {
				case out <- post:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func postFromUpdate(update tgbotapi.Update, channelID int64, selfID int64) (ChatPost, bool) {
	msg := update.ChannelPost
	if msg == nil {
		msg = update.Message
	}
	if msg == nil || msg.Audio == nil || msg.Chat == nil || msg.Chat.ID != channelID {
		return ChatPost{}, false
	}

	post := ChatPost{
		MessageID: int64(msg.MessageID),
		AudioFileID: msg.Audio.FileID,
		AudioFileUniqueID: msg.Audio.FileUniqueID,
	}
	if msg.Audio.Title != "" {
		t := msg.Audio.Title
		post.Title = &t
	}
	if msg.Audio.Performer != "" {
		p := msg.Audio.Performer
		post.Performer = &p
	}
	if msg.Audio.FileName != "" {
		f := msg.Audio.FileName
		post.FileName = &f
	}
	if msg.Audio.Duration > 0 {
		d := msg.Audio.Duration
		post.DurationSeconds = &d
	}
	if msg.From != nil && msg.From.ID == selfID {
		post.SenderIsSelf = true
	}

	return post, true
}
