package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"precoscan/pkg/scanner"
	"precoscan/pkg/store"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

func main() {
	// Auto-load ./.env if present (no external dependency) before reading vars
	loadDotEnv()
	setupLogging()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./precoscan migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		logrus.Info("migration and seeding completed")
		return
	}

	initDB()

	local, err := store.Open(localStorePath())
	if err != nil {
		logrus.Fatal("failed to open local store: ", err)
	}
	defer local.Close()

	cfg := scanner.DefaultConfig()
	if lang := os.Getenv("SCAN_LANG"); lang != "" {
		cfg.Language = lang
	}
	scan := newScannerService(cfg, local)

	r := gin.Default()

	setupRoutes(r, scan)

	addr := ":8081"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	r.Run(addr)
}

func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// localStorePath returns the bbolt file backing the anonymous cart
// (configurable via LOCAL_STORE_PATH).
func localStorePath() string {
	if v := os.Getenv("LOCAL_STORE_PATH"); v != "" {
		return v
	}
	return "local.db"
}

// loadDotEnv loads key=value pairs from a local .env file into the environment
// without overwriting variables that are already set. Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return // no .env file
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// split on first '='
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
