package database

import (
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/maxturbaman/GREENDELIVERY/internal/config"
	"github.com/maxturbaman/GREENDELIVERY/internal/models"
	"github.com/maxturbaman/GREENDELIVERY/pkg/utils"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// The store expects single-writer consistency; sqlite enforces it as
	// long as every statement goes through one connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := Seed(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
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
}

// Seed creates the three fixed roles and, on an empty user table, the
// initial admin account. The admin password comes from the environment and
// is stored hashed.
func Seed(db *gorm.DB) error {
	roles := []models.Role{
		{BaseModel: models.BaseModel{ID: models.RoleIDAdmin}, Name: models.RoleAdmin, Description: "Administrator - full control"},
		{BaseModel: models.BaseModel{ID: models.RoleIDCourier}, Name: models.RoleCourier, Description: "Courier - delivery management"},
		{BaseModel: models.BaseModel{ID: models.RoleIDCustomer}, Name: models.RoleCustomer, Description: "Customer - own orders only"},
	}
	for _, role := range roles {
		if err := db.Where(models.Role{Name: role.Name}).FirstOrCreate(&role).Error; err != nil {
			return err
		}
	}

	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}

	username := "admin"
	admin := models.User{
		Username:     &username,
		PasswordHash: &hash,
		FirstName:    "Admin",
		Approved:     true,
		RoleID:       models.RoleIDAdmin,
	}

	return db.Create(&admin).Error
}
