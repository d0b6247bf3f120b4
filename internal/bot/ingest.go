package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
)

// UpdateSource fetches update batches. Satisfied by *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Ingestor feeds telegram updates into the dispatcher from exactly one
// channel (long polling or webhook) while keeping a monotonically advancing
// last-seen update id. The id is persisted so restarts do not replay
// already-handled updates.
type Ingestor struct {
	Bot    *Bot
	DB     *gorm.DB
	Source UpdateSource
	Cfg    config.TelegramConfig

	mu           sync.Mutex
	lastUpdateID int64
	polling      atomic.Bool
}

func NewIngestor(bot *Bot, db *gorm.DB, source UpdateSource, cfg config.TelegramConfig) *Ingestor {
	return &Ingestor{Bot: bot, DB: db, Source: source, Cfg: cfg}
}

// LoadCursor restores the persisted last-seen update id. A missing row means
// a fresh deployment and starts the counter at zero.
func (i *Ingestor) LoadCursor() error {
	var cursor models.UpdateCursor
	err := i.DB.First(&cursor, 1).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return err
	}
	i.mu.Lock()
	i.lastUpdateID = cursor.LastUpdateID
	i.mu.Unlock()
	return nil
}

// Dispatch routes one update to the conversation handlers. Updates whose id
// does not advance the counter are duplicates and are dropped. Returns true
// when the update was actually processed.
func (i *Ingestor) Dispatch(update tgbotapi.Update) bool {
	id := int64(update.UpdateID)

	i.mu.Lock()
	if id <= i.lastUpdateID {
		i.mu.Unlock()
		logger.Info("update_duplicate_dropped", map[string]interface{}{
			"update_id": id,
		})
		return false
	}
	i.lastUpdateID = id
	i.persistCursorLocked(id)
	i.mu.Unlock()

	if update.Message != nil {
		if err := i.Bot.HandleMessage(update.Message); err != nil {
			logger.Error("update_message_failed", err, map[string]interface{}{
				"update_id": id,
			})
		}
	}
	if update.CallbackQuery != nil {
		if err := i.Bot.HandleCallback(update.CallbackQuery); err != nil {
			logger.Error("update_callback_failed", err, map[string]interface{}{
				"update_id": id,
			})
		}
	}
	return true
}

func (i *Ingestor) persistCursorLocked(id int64) {
	err := i.DB.Save(&models.UpdateCursor{ID: 1, LastUpdateID: id}).Error
	if err != nil {
		logger.Warn("update_cursor_persist_failed", map[string]interface{}{
			"update_id": id,
			"error":     err.Error(),
		})
	}
}

// LastUpdateID reports the highest update id seen so far.
func (i *Ingestor) LastUpdateID() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastUpdateID
}

// RunPolling long-polls for updates on a fixed interval until the context is
// cancelled. A tick that fires while a previous poll is still outstanding is
// a no-op.
func (i *Ingestor) RunPolling(ctx context.Context) {
	ticker := time.NewTicker(i.Cfg.PollInterval)
	defer ticker.Stop()

	i.pollOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.pollOnce()
		}
	}
}

func (i *Ingestor) pollOnce() {
	if !i.polling.CompareAndSwap(false, true) {
		return
	}
	defer i.polling.Store(false)

	cfg := tgbotapi.NewUpdate(int(i.LastUpdateID()) + 1)
	cfg.Timeout = i.Cfg.PollTimeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	updates, err := i.Source.GetUpdates(cfg)
	if err != nil {
		logger.Error("telegram_poll_failed", err, nil)
		return
	}
	for _, update := range updates {
		i.Dispatch(update)
	}
}

// WebhookHandler accepts updates pushed by telegram. When a webhook secret
// is configured, requests must carry it in the
// X-Telegram-Bot-Api-Secret-Token header.
func (i *Ingestor) WebhookHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if i.Cfg.WebhookSecret != "" {
			provided := c.Get("X-Telegram-Bot-Api-Secret-Token")
			if provided != i.Cfg.WebhookSecret {
				logger.Warn("webhook_secret_mismatch", map[string]interface{}{
					"ip": c.IP(),
				})
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid webhook secret",
				})
			}
		}

		var update tgbotapi.Update
		if err := c.BodyParser(&update); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid update payload",
			})
		}

		i.Dispatch(update)
		return c.JSON(fiber.Map{"ok": true})
	}
}
