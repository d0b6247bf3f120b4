package services

import (
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/pkg/logger"
)

var testSetupOnce sync.Once

func setupTestDB(t *testing.T) *gorm.DB {
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

	return db
}

func createUser(t *testing.T, db *gorm.DB, roleID uint, approved bool) *models.User {
	t.Helper()
	user := &models.User{FirstName: "Test", Approved: approved, RoleID: roleID}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating user: %v", err)
	}
	return user
}

func challengeConfig() config.ChallengeConfig {
	return config.ChallengeConfig{TTL: 5 * time.Minute, MaxAttempts: 5, CodeDigits: 6}
}

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{CookieName: "gd_session", TTL: 12 * time.Hour}
}
