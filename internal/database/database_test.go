package database

import (
	"path/filepath"
	"testing"

	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
)

func TestConnectMigratesAndSeeds(t *testing.T) {
	cfg := config.DBConfig{Path: filepath.Join(t.TempDir(), "store", "test.db")}

	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	var roleCount int64
	if err := db.Model(&models.Role{}).Count(&roleCount).Error; err != nil {
		t.Fatalf("counting roles failed: %v", err)
	}
	if roleCount != 3 {
		t.Fatalf("role count = %d, want 3", roleCount)
	}

	var admin models.User
	if err := db.Preload("Role").First(&admin, "username = ?", "admin").Error; err != nil {
		t.Fatalf("seeded admin missing: %v", err)
	}
	if admin.Role.Name != models.RoleAdmin {
		t.Fatalf("admin role = %s, want %s", admin.Role.Name, models.RoleAdmin)
	}
	if admin.PasswordHash == nil || !utils.IsHashedPassword(*admin.PasswordHash) {
		t.Fatal("seeded admin password is not stored hashed")
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	cfg := config.DBConfig{Path: filepath.Join(t.TempDir(), "test.db")}

	first, err := Connect(cfg)
	if err != nil {
		t.Fatalf("first connect failed: %v", err)
	}
	firstDB, err := first.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	_ = firstDB.Close()

	second, err := Connect(cfg)
	if err != nil {
		t.Fatalf("second connect failed: %v", err)
	}
	sqlDB, err := second.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	var userCount int64
	if err := second.Model(&models.User{}).Count(&userCount).Error; err != nil {
		t.Fatalf("counting users failed: %v", err)
	}
	if userCount != 1 {
		t.Fatalf("user count after reconnect = %d, want 1", userCount)
	}
}
