package env

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	TelegramBotToken string
	AlertChatID      int64
	OpsChatID        int64

	AdminToken string

	Port       string
	PublicURL  string
	ConfigPath string

	DATABASE_URL string

	DataDir          string
	SubsFile         string
	FirstSeenFile    string
	MirrorJSON       string
	PinsJSON         string
	TwitterCacheJSON string
	MyFollowingTXT   string
)

var hiddenKeys = map[string]bool{
	"TELEGRAM_BOT_TOKEN": true,
	"DATABASE_URL":       true,
	"ADMIN_TOKEN":        true,
}

func loadEnvVariable(key string, isRequired bool) string {
	value := os.Getenv(key)
	if isRequired && value == "" {
		log.Fatalf("FATAL: Environment variable %s is required but not set.", key)
	}
	if value == "" {
		if !isRequired {
			log.Printf("INFO: Environment variable %s is not set.", key)
		}
	} else if hiddenKeys[key] {
		log.Printf("INFO: Loaded %s (value hidden)", key)
	} else {
		log.Printf("INFO: Loaded %s = %s", key, value)
	}
	return value
}

func loadInt64Env(key string, required bool) int64 {
	strValue := loadEnvVariable(key, required)
	if strValue == "" {
		return 0
	}
	id, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		log.Fatalf("FATAL: Failed to parse int64 environment variable %s='%s': %v", key, strValue, err)
	}
	return id
}

// loadPathEnv returns the path from key, or name inside DataDir when unset.
func loadPathEnv(key, name string) string {
	if p := loadEnvVariable(key, false); p != "" {
		return p
	}
	return filepath.Join(DataDir, name)
}

func LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: .env file not found or error loading, relying on system environment variables.")
	} else {
		log.Println("INFO: .env file loaded successfully.")
	}

	TelegramBotToken = loadEnvVariable("TELEGRAM_BOT_TOKEN", true)
	AlertChatID = loadInt64Env("ALERT_CHAT_ID", false)
	OpsChatID = loadInt64Env("OPS_CHAT_ID", false)

	AdminToken = loadEnvVariable("ADMIN_TOKEN", false)

	Port = loadEnvVariable("PORT", false)
	if Port == "" {
		Port = "8080"
		log.Printf("INFO: PORT not set, defaulting to %s", Port)
	}
	PublicURL = loadEnvVariable("PUBLIC_URL", false)
	ConfigPath = loadEnvVariable("CONFIG_PATH", false)
	if ConfigPath == "" {
		ConfigPath = "agent/config.yaml"
	}

	DATABASE_URL = loadEnvVariable("DATABASE_URL", false)

	DataDir = loadEnvVariable("DATA_DIR", false)
	if DataDir == "" {
		DataDir = "/tmp/telegram-bot"
	}
	SubsFile = loadPathEnv("SUBS_FILE", "subscribers.txt")
	FirstSeenFile = loadPathEnv("FIRST_SEEN_FILE", "first_seen_caps.json")
	MirrorJSON = loadPathEnv("MIRROR_JSON", "mirror.json")
	PinsJSON = loadPathEnv("PINS_JSON", "pins.json")
	TwitterCacheJSON = loadPathEnv("TWITTER_CACHE_JSON", "twitter_cache.json")
	MyFollowingTXT = loadPathEnv("MY_FOLLOWING_TXT", "handles.partial.txt")

	if DATABASE_URL == "" {
		log.Println("INFO: DATABASE_URL is not set. State documents will be kept as flat files.")
	}
	if PublicURL == "" {
		log.Println("INFO: PUBLIC_URL is not set. Telegram updates will be received by long polling.")
	}
	log.Println("INFO: Environment variables loading process complete.")
	return nil
}
