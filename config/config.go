package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var logger = log.New(os.Stdout, "[config] ", log.LstdFlags)

var (
	DebugMode bool

	BitsoWSEndpoint   = "wss://ws.bitso.com"
	BitsoRestEndpoint = "https://api.bitso.com"

	// Budget for snapshot refetches before the engine gives up on a resync.
	ResyncMaxAttempts = 5
	ResyncBackoffMin  = 500 * time.Millisecond
	ResyncBackoffMax  = 10 * time.Second

	SnapshotRequestTimeout = 10 * time.Second
)

// Init loads the .env file (if present) and overrides defaults from the
// environment. Safe to call more than once.
func Init() {
	if err := godotenv.Load(); err != nil {
		logger.Println("no .env file found, using defaults and environment")
	}

	DebugMode = os.Getenv("DEBUG_MODE") == "true"

	if v := os.Getenv("BITSO_WS_ENDPOINT"); v != "" {
		BitsoWSEndpoint = v
	}
	if v := os.Getenv("BITSO_REST_ENDPOINT"); v != "" {
		BitsoRestEndpoint = v
	}
	if v := os.Getenv("RESYNC_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Printf("invalid RESYNC_MAX_ATTEMPTS=%s, keeping %d", v, ResyncMaxAttempts)
		} else {
			ResyncMaxAttempts = n
		}
	}
}
