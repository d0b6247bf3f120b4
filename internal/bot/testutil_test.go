package bot

import (
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/internal/services"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
)

var testSetupOnce sync.Once

// fakeAPI records outbound telegram traffic and serves canned updates.
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  []tgbotapi.Update
	polls    int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) SendMediaGroup(cfg tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cfg)
	return nil, nil
}

func (f *fakeAPI) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.updates, nil
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeAPI) lastMessageText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if msg, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return msg.Text
		}
	}
	t.Fatal("no message was sent")
	return ""
}

func (f *fakeAPI) lastCallbackAnswer(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if cb, ok := f.requests[i].(tgbotapi.CallbackConfig); ok {
			return cb.Text
		}
	}
	t.Fatal("no callback was answered")
	return ""
}

type botEnv struct {
	db    *gorm.DB
	api   *fakeAPI
	store ConversationStore
	bot   *Bot
}

func setupBotEnv(t *testing.T) *botEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Product{},
		&models.ProductImage{},
		&models.Order{},
		&models.OrderItem{},
		&models.UpdateCursor{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	roles := []models.Role{
		{BaseModel: models.BaseModel{ID: models.RoleIDAdmin}, Name: models.RoleAdmin},
		{BaseModel: models.BaseModel{ID: models.RoleIDCourier}, Name: models.RoleCourier},
		{BaseModel: models.BaseModel{ID: models.RoleIDCustomer}, Name: models.RoleCustomer},
	}
	for _, role := range roles {
		if err := db.Create(&role).Error; err != nil {
			t.Fatalf("failed seeding role: %v", err)
		}
	}

	api := &fakeAPI{}
	store := NewMemoryStore()
	dispatcher := NewBot(db, api, store, services.NewOrderService(db), 999)

	return &botEnv{db: db, api: api, store: store, bot: dispatcher}
}

func (e *botEnv) createCustomer(t *testing.T, telegramID int64, approved bool) *models.User {
	t.Helper()
	user := &models.User{
		FirstName:  "Cliente",
		Approved:   approved,
		RoleID:     models.RoleIDCustomer,
		TelegramID: &telegramID,
	}
	if err := e.db.Create(user).Error; err != nil {
		t.Fatalf("failed creating customer: %v", err)
	}
	return user
}

func (e *botEnv) createProduct(t *testing.T, name string, price float64, active bool) *models.Product {
	t.Helper()
	product := &models.Product{Name: name, Price: price, Active: active}
	if err := e.db.Create(product).Error; err != nil {
		t.Fatalf("failed creating product: %v", err)
	}
	return product
}

func textMessage(telegramID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: telegramID},
		Chat: &tgbotapi.Chat{ID: telegramID},
		Text: text,
	}
}

func callbackQuery(telegramID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      fmt.Sprintf("cb-%d-%s", telegramID, data),
		From:    &tgbotapi.User{ID: telegramID},
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: telegramID}},
		Data:    data,
	}
}

func (e *botEnv) mustHandleMessage(t *testing.T, telegramID int64, text string) {
	t.Helper()
	if err := e.bot.HandleMessage(textMessage(telegramID, text)); err != nil {
		t.Fatalf("message %q failed: %v", text, err)
	}
}

func (e *botEnv) mustHandleCallback(t *testing.T, telegramID int64, data string) {
	t.Helper()
	if err := e.bot.HandleCallback(callbackQuery(telegramID, data)); err != nil {
		t.Fatalf("callback %q failed: %v", data, err)
	}
}
