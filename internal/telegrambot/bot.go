// Package telegrambot implements the admin command surface: a
// narrow set of read/retry commands gated on an allowlist of Telegram
// user ids, kept deliberately small next to the chat-post listener in
// internal/adapters (which is the ingestion path, not this one).
//
// Grounded on original_source/telegram/bot.py: _is_admin, _cmd_stats,
// _cmd_failed, _cmd_retry, re-expressed over
// go-telegram-bot-api/telegram-bot-api's long-poll update loop instead
// of python-telegram-bot's Application/handler registration.
package telegrambot

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/charmbracelet/log"

	"github.com/navaarsync/navaar/internal/metrics"
	"github.com/navaarsync/navaar/internal/models"
	"github.com/navaarsync/navaar/internal/store"
)

// Bot serves the admin command surface over long polling. It never
// touches the channel the chat adapter listens on.
type Bot struct {
	api *tgbotapi.BotAPI
	tracks *store.TrackStore
	adminIDs []int64
	logger *log.Logger
}

// New builds a Bot authenticating with token. adminIDs is the
// telegram_admin_user_ids allowlist; any command from outside it is
// silently ignored.
func New(token string, adminIDs []int64, tracks *store.TrackStore, logger *log.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &Bot{api: api, tracks: tracks, adminIDs: adminIDs, logger: logger}, nil
}

// Serve long-polls for updates until ctx is canceled.
func (b *Bot) Serve(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() || update.Message.From == nil {
		return
	}
	if !b.isAdmin(update.Message.From.ID) {
		b.logger.Warn("rejected command from non-admin", "user_id", update.Message.From.ID, "command", update.Message.Command())
		return
	}

	chatID := update.Message.Chat.ID
	args := update.Message.CommandArguments()

	switch update.Message.Command() {
	case "stats":
		b.cmdStats(chatID)
	case "failed":
		b.cmdFailed(chatID, args)
	case "retry":
		b.cmdRetry(chatID, args)
	case "reset_failed":
		b.cmdResetFailed(chatID, args)
	case "recent":
		b.cmdRecent(chatID, args)
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return slices.Contains(b.adminIDs, userID)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send admin reply", "error", err)
	}
}

// cmdStats mirrors _cmd_stats's progress-bar summary.
func (b *Bot) cmdStats(chatID int64) {
	stats, err := b.tracks.GetStats()
	if err != nil {
		b.reply(chatID, fmt.Sprintf("failed to load stats: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf(
		"Navaar stats\n%s\ntotal: %d synced: %d failed: %d duplicate: %d pending: %d\nsuccess rate: %.1f%%",
		progressBar(stats.SuccessRate), stats.Total, stats.Synced, stats.Failed, stats.Duplicate, stats.Pending, stats.SuccessRate,
	))
}

func progressBar(successRate float64) string {
	const width = 20
	filled := int(successRate / 100 * width)
	if filled > width {
		filled = width
	}
	return strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
}

// cmdFailed lists failed tracks, optionally scoped to one direction
// ("tg"/"tg_to_yt", "yt"/"yt_to_tg", ...). No argument lists all six.
func (b *Bot) cmdFailed(chatID int64, arg string) {
	direction, ok := parseDirectionArg(arg)
	if arg != "" && !ok {
		b.reply(chatID, fmt.Sprintf("unknown direction %q", arg))
		return
	}

	failed, err := b.tracks.GetFailed(direction)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("failed to load failed tracks: %v", err))
		return
	}
	if len(failed) == 0 {
		b.reply(chatID, "no failed tracks")
		return
	}

	const maxLines = 20
	var lines []string
	for i, t := range failed {
		if i >= maxLines {
			lines = append(lines, fmt.Sprintf("... and %d more", len(failed)-maxLines))
			break
		}
		lines = append(lines, trackLine(t))
	}
	b.reply(chatID, fmt.Sprintf("%d failed track(s)\n%s", len(failed), strings.Join(lines, "\n")))
}

// cmdRetry resets one track by id, or every failed track in a direction
// ("all", "tg"/"tg_to_yt", "yt"/"yt_to_tg", ...), mirroring the original bot's retry command.
func (b *Bot) cmdRetry(chatID int64, arg string) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		b.reply(chatID, "usage: /retry <id|all|direction>")
		return
	}

	if arg == "all" {
		total := 0
		for _, d := range models.Directions {
			n, err := b.tracks.ResetAllFailed(d)
			if err != nil {
				b.reply(chatID, fmt.Sprintf("failed to reset %s: %v", d, err))
				return
			}
			total += n
			for i := 0; i < n; i++ {
				metrics.RetriesTotal.WithLabelValues(string(d)).Inc()
			}
		}
		b.reply(chatID, fmt.Sprintf("reset %d failed track(s) across all directions", total))
		return
	}

	if direction, ok := parseDirectionArg(arg); ok {
		n, err := b.tracks.ResetAllFailed(direction)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("failed to reset %s: %v", direction, err))
			return
		}
		for i := 0; i < n; i++ {
			metrics.RetriesTotal.WithLabelValues(string(direction)).Inc()
		}
		b.reply(chatID, fmt.Sprintf("reset %d failed track(s) for %s", n, direction))
		return
	}

	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("unrecognized argument %q", arg))
		return
	}
	t, err := b.tracks.Get(id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("track %d not found", id))
		return
	}
	if t.Status != models.StatusFailed {
		b.reply(chatID, fmt.Sprintf("track %d is not failed (status: %s)", id, t.Status))
		return
	}
	if _, err := b.tracks.ResetForRetry(id); err != nil {
		b.reply(chatID, fmt.Sprintf("failed to reset track %d: %v", id, err))
		return
	}
	metrics.RetriesTotal.WithLabelValues(string(t.Direction)).Inc()
	b.reply(chatID, fmt.Sprintf("track %d queued for retry", id))
}

// cmdResetFailed is the narrowed, direction-only form of /retry — it
// requires a direction argument rather than accepting an id.
func (b *Bot) cmdResetFailed(chatID int64, arg string) {
	direction, ok := parseDirectionArg(arg)
	if !ok {
		b.reply(chatID, "usage: /reset_failed <direction>")
		return
	}
	n, err := b.tracks.ResetAllFailed(direction)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("failed to reset %s: %v", direction, err))
		return
	}
	for i := 0; i < n; i++ {
		metrics.RetriesTotal.WithLabelValues(string(direction)).Inc()
	}
	b.reply(chatID, fmt.Sprintf("reset %d failed track(s) for %s", n, direction))
}

// cmdRecent lists the most recently touched tracks, optionally scoped
// to a direction. Argument form: "[limit] [direction]" or just a
// direction, or just a limit.
func (b *Bot) cmdRecent(chatID int64, arg string) {
	limit := 10
	var direction models.Direction

	fields := strings.Fields(arg)
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			limit = n
			continue
		}
		if d, ok := parseDirectionArg(f); ok {
			direction = d
		}
	}

	tracks, err := b.tracks.GetRecent(limit, direction)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("failed to load recent tracks: %v", err))
		return
	}
	if len(tracks) == 0 {
		b.reply(chatID, "no tracks")
		return
	}
	var lines []string
	for _, t := range tracks {
		lines = append(lines, trackLine(t))
	}
	b.reply(chatID, fmt.Sprintf("%d recent track(s)\n%s", len(tracks), strings.Join(lines, "\n")))
}

func trackLine(t *models.Track) string {
	artist := ""
	if t.Artist != nil {
		artist = *t.Artist + " - "
	}
	return fmt.Sprintf("#%d [%s/%s] %s%s", t.ID, t.Direction, t.Status, artist, t.Title)
}

// parseDirectionArg accepts both the short source-only form used by the
// original bot ("tg", "yt", "sp") and the full direction name.
func parseDirectionArg(arg string) (models.Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "tg", "tg_to_yt":
		return models.TgToYt, true
	case "yt", "yt_to_tg":
		return models.YtToTg, true
	case "sp", "sp_to_tg":
		return models.SpToTg, true
	case "tg_to_sp":
		return models.TgToSp, true
	case "yt_to_sp":
		return models.YtToSp, true
	case "sp_to_yt":
		return models.SpToYt, true
	default:
		return "", false
	}
}
