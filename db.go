package main

import (
	"os"
	"strings"

	"precoscan/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func initDB() {
	var err error
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		logrus.Fatal("DB_DSN is not set. This project requires a Postgres DSN in DB_DSN.")
	}
	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatal("failed to connect postgres database: ", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true). Any permission errors will be logged and ignored.
	shouldMigrate := true
	if v := os.Getenv("DB_AUTO_MIGRATE"); v != "" {
		lv := strings.ToLower(v)
		if lv == "false" || lv == "0" || lv == "no" {
			shouldMigrate = false
		}
	}
	if shouldMigrate {
		// Migrate models individually so a failure on one doesn't block others
		if err := db.AutoMigrate(&models.User{}); err != nil {
			logrus.Warnf("migration warning (users): %v", err)
		}
		if err := db.AutoMigrate(&models.RefreshToken{}); err != nil {
			logrus.Warnf("migration warning (refresh_tokens): %v", err)
		}
		if err := db.AutoMigrate(&models.CartItem{}); err != nil {
			logrus.Warnf("migration warning (cart_items): %v", err)
		}
		if err := db.AutoMigrate(&models.SavedList{}); err != nil {
			logrus.Warnf("migration warning (saved_lists): %v", err)
		}
		if err := db.AutoMigrate(&models.SavedListItem{}); err != nil {
			logrus.Warnf("migration warning (saved_list_items): %v", err)
		}
		if err := db.AutoMigrate(&models.GlobalPrice{}); err != nil {
			logrus.Warnf("migration warning (global_prices): %v", err)
		}
		if err := db.AutoMigrate(&models.PurchaseHistory{}); err != nil {
			logrus.Warnf("migration warning (purchase_histories): %v", err)
		}
		if err := db.AutoMigrate(&models.PurchaseItem{}); err != nil {
			logrus.Warnf("migration warning (purchase_items): %v", err)
		}
		if err := db.AutoMigrate(&models.ScanRecord{}); err != nil {
			logrus.Warnf("migration warning (scan_records): %v", err)
		}
	}
	seedDB()
}

func seedDB() {
	// Check if admin user exists
	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		admin := models.User{Username: "admin"}
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin.HashedPassword = hashedPassword
		db.Create(&admin)
		logrus.Info("Seeded admin user: username=admin, password=admin123")
	}
	ensureSpoolBase()
}

// ensureSpoolBase creates the directory the capture client drops frames into.
func ensureSpoolBase() {
	base := spoolBaseDir()
	if err := os.MkdirAll(base, 0755); err != nil {
		logrus.Warnf("failed to create spool base dir %s: %v", base, err)
	}
}

// spoolBaseDir returns the frame spool directory (configurable via SCAN_SPOOL_DIR)
func spoolBaseDir() string {
	if v := os.Getenv("SCAN_SPOOL_DIR"); v != "" {
		return v
	}
	return "spool"
}
