package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/middleware"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/internal/services"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
)

type sentCode struct {
	ChatID int64
	Code   string
}

type sentStatus struct {
	ChatID  int64
	OrderID uint
	Status  models.OrderStatus
}

// fakeNotifier records outbound notifications and can be told to fail.
type fakeNotifier struct {
	mu       sync.Mutex
	codes    []sentCode
	statuses []sentStatus
	fail     bool
}

func (f *fakeNotifier) SendLoginCode(chatID int64, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("delivery failed")
	}
	f.codes = append(f.codes, sentCode{ChatID: chatID, Code: code})
	return nil
}

func (f *fakeNotifier) NotifyOrderStatus(chatID int64, orderID uint, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("delivery failed")
	}
	f.statuses = append(f.statuses, sentStatus{ChatID: chatID, OrderID: orderID, Status: status})
	return nil
}

func (f *fakeNotifier) lastCode(t *testing.T) sentCode {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.codes) == 0 {
		t.Fatal("no login code was delivered")
	}
	return f.codes[len(f.codes)-1]
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	sessions *services.SessionService
	notifier *fakeNotifier
	cfg      *config.Config
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
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
		&models.Session{},
		&models.LoginChallenge{},
		&models.UpdateCursor{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}
	seedRoles(t, db)

	cfg := &config.Config{
		Session: config.SessionConfig{
			CookieName: "gd_session",
			TTL:        12 * time.Hour,
		},
		Challenge: config.ChallengeConfig{
			TTL:         5 * time.Minute,
			MaxAttempts: 5,
			CodeDigits:  6,
		},
	}

	sessionService := services.NewSessionService(db, cfg.Session)
	challengeService := services.NewChallengeService(db, cfg.Challenge)
	notifier := &fakeNotifier{}

	authHandler := NewAuthHandler(db, sessionService, challengeService, notifier, cfg)
	productsHandler := NewProductsHandler(db, nil)
	ordersHandler := NewOrdersHandler(db, notifier)
	usersHandler := NewUsersHandler(db)
	statsHandler := NewStatsHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(sessionService, cfg.Session)

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())
	app.Use(middleware.SameOrigin)

	api := app.Group("/api")
	api.Post("/login", authHandler.Login)
	api.Post("/verify-2fa", authHandler.Verify)
	api.Post("/logout", authHandler.Logout)
	api.Get("/session", authMiddleware.RequireAuth, authHandler.Session)

	staff := []models.RoleName{models.RoleAdmin, models.RoleCourier}

	productRoutes := api.Group("/products", authMiddleware.RequireAuth, middleware.RequireRoles(staff...))
	productRoutes.Get("/", productsHandler.List)
	productRoutes.Post("/", productsHandler.Create)
	productRoutes.Put("/:id", productsHandler.Update)
	productRoutes.Patch("/:id/status", productsHandler.UpdateStatus)
	productRoutes.Delete("/:id", productsHandler.Delete)

	orderRoutes := api.Group("/orders", authMiddleware.RequireAuth, middleware.RequireRoles(staff...))
	orderRoutes.Get("/", ordersHandler.List)
	orderRoutes.Patch("/:id/status", ordersHandler.UpdateStatus)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.RequireRoles(models.RoleAdmin))
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Post("/", usersHandler.Create)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Patch("/:id/approve", usersHandler.Approve)
	userRoutes.Patch("/:id/role", usersHandler.SetRole)

	api.Get("/stats", authMiddleware.RequireAuth, middleware.RequireRoles(staff...), statsHandler.Overview)

	return &testEnv{app: app, db: db, sessions: sessionService, notifier: notifier, cfg: cfg}
}

func seedRoles(t *testing.T, db *gorm.DB) {
	t.Helper()
	roles := []models.Role{
		{BaseModel: models.BaseModel{ID: models.RoleIDAdmin}, Name: models.RoleAdmin},
		{BaseModel: models.BaseModel{ID: models.RoleIDCourier}, Name: models.RoleCourier},
		{BaseModel: models.BaseModel{ID: models.RoleIDCustomer}, Name: models.RoleCustomer},
	}
	for _, role := range roles {
		if err := db.Create(&role).Error; err != nil {
			t.Fatalf("failed seeding role %s: %v", role.Name, err)
		}
	}
}

func createStaffUser(t *testing.T, db *gorm.DB, username, password string, roleID uint, telegramID int64) *models.User {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Username:     &username,
		PasswordHash: &hash,
		FirstName:    "Test",
		Approved:     true,
		RoleID:       roleID,
		TelegramID:   &telegramID,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}
	if err := db.Preload("Role").First(user, user.ID).Error; err != nil {
		t.Fatalf("failed reloading test user: %v", err)
	}
	return user
}

func createCustomer(t *testing.T, db *gorm.DB, telegramID int64, approved bool) *models.User {
	t.Helper()

	user := &models.User{
		FirstName:  "Cliente",
		Approved:   approved,
		RoleID:     models.RoleIDCustomer,
		TelegramID: &telegramID,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating customer: %v", err)
	}
	if err := db.Preload("Role").First(user, user.ID).Error; err != nil {
		t.Fatalf("failed reloading customer: %v", err)
	}
	return user
}

func loginSession(t *testing.T, env *testEnv, userID uint) string {
	t.Helper()
	token, _, err := env.sessions.Create(userID, "127.0.0.1", "go-test")
	if err != nil {
		t.Fatalf("failed creating session: %v", err)
	}
	return token
}

func sessionHeaders(token string) map[string]string {
	return map[string]string{"Cookie": "gd_session=" + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}
