package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/audiodrop/musicbox/storage"
)

// DefaultPath is where Load looks for the JSON config when no path is given.
const DefaultPath = "config/config.json"

// AppConfig holds startup configuration. It is read once in main and handed to the application
// context; nothing mutates it afterwards.
type AppConfig struct {
	AppPort        string
	SecretKey      string
	TokenTTLHours  int
	AllowedOrigins []string
	SeedEmail      string
	SeedPassword   string
	// Database
	DBDriver    string
	DatabaseURI string
	SQLitePath  string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for token revocation and sessions; disabled when RedisHost is empty
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	GinMode       string
	GinPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Uploads
	UploadDir         string
	AllowedExtensions []string
	MaxContentLength  int64
	HashAlgorithm     string
}

// ErrMissingSecret is returned by Load when no signing secret is configured.
var ErrMissingSecret = errors.New("SECRET_KEY must be set in config or environment")

// Load reads configuration from the JSON file at path, fills defaults and applies environment overrides.
// Precedence: JSON file -> defaults -> environment variables. A missing file is not an error.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	if path == "" {
		path = DefaultPath
	}
	if err := loadJSONConfig(path, &cfg); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	if cfg.SecretKey == "" {
		return cfg, ErrMissingSecret
	}
	if cfg.HashAlgorithm != "sha256" && cfg.HashAlgorithm != "blake3" {
		return cfg, fmt.Errorf("unsupported hash algorithm %q", cfg.HashAlgorithm)
	}
	for _, ext := range cfg.AllowedExtensions {
		if !storage.ValidExtension(strings.TrimPrefix(strings.TrimSpace(ext), ".")) {
			return cfg, fmt.Errorf("allowed extension %q must be 1-16 letters or digits", ext)
		}
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads grouped sections from the JSON file into out. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int64 {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case json.Number:
				i, _ := t.Int64()
				return i
			case float64:
				return int64(t)
			}
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.SecretKey = getString(app, "SecretKey")
		out.TokenTTLHours = int(getInt(app, "TokenTTLHours"))
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.SeedEmail = getString(app, "SeedEmail")
		out.SeedPassword = getString(app, "SeedPassword")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.SQLitePath = getString(dbs, "SQLitePath")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = int(getInt(rds, "RedisPort"))
		out.RedisDB = int(getInt(rds, "RedisDB"))
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.GinMode = getString(lg, "GinMode")
		out.GinPath = getString(lg, "GinPath")
		out.LogMaxSizeMB = int(getInt(lg, "MaxSizeMB"))
		out.LogMaxBackups = int(getInt(lg, "MaxBackups"))
		out.LogMaxAgeDays = int(getInt(lg, "MaxAgeDays"))
		out.LogCompress = getBool(lg, "Compress")
	}

	if up, ok := raw["upload"].(map[string]any); ok {
		out.UploadDir = getString(up, "Dir")
		out.AllowedExtensions = getStringSlice(up, "AllowedExtensions")
		out.MaxContentLength = getInt(up, "MaxContentLength")
		out.HashAlgorithm = getString(up, "HashAlgorithm")
	}

	return nil
}

// applyDefaults sets defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "3000"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.SeedEmail == "" {
		c.SeedEmail = "ya.androidapp@gmail.com"
	}
	if c.SeedPassword == "" {
		c.SeedPassword = "PASSWORD"
	}
	if c.DBDriver == "" {
		c.DBDriver = "sqlite"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "app.db"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "musicbox"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.UploadDir == "" {
		c.UploadDir = "./data"
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{"mp3"}
	}
	if c.MaxContentLength == 0 {
		c.MaxContentLength = 10 * 1024 * 1024 * 1024 // 10GB
	}
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = "sha256"
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	var err error
	setInt := func(key string, dst *int) {
		if v := getEnv(key, ""); v != "" && err == nil {
			var n int
			if n, err = strconv.Atoi(v); err != nil {
				err = fmt.Errorf("invalid integer value for %s: %w", key, err)
				return
			}
			*dst = n
		}
	}

	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("SECRET_KEY", ""); v != "" {
		c.SecretKey = v
	}
	setInt("TOKEN_TTL_HOURS", &c.TokenTTLHours)
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := getEnv("SEED_EMAIL", ""); v != "" {
		c.SeedEmail = v
	}
	if v := getEnv("SEED_PASSWORD", ""); v != "" {
		c.SeedPassword = v
	}
	if v := getEnv("DB_DRIVER", ""); v != "" {
		c.DBDriver = v
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("SQLITE_PATH", ""); v != "" {
		c.SQLitePath = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	setInt("REDIS_PORT", &c.RedisPort)
	setInt("REDIS_DB", &c.RedisDB)
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	setInt("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	setInt("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	setInt("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("UPLOAD_DIR", ""); v != "" {
		c.UploadDir = v
	}
	if v := getEnv("ALLOWED_EXTENSIONS", ""); v != "" {
		c.AllowedExtensions = splitAndTrim(v)
	}
	if v := getEnv("MAX_CONTENT_LENGTH", ""); v != "" && err == nil {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid integer value for MAX_CONTENT_LENGTH: %w", perr)
		}
		c.MaxContentLength = n
	}
	if v := getEnv("HASH_ALGORITHM", ""); v != "" {
		c.HashAlgorithm = strings.ToLower(v)
	}
	return err
}

// TokenTTL returns the bearer token lifetime.
func (c AppConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
