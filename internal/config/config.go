package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joho/godotenv"

	"devsync/internal/logging"
)

type Config struct {
	DBPath     string
	ImportDir  string
	ArchiveDir string
	OutputDir  string

	ImportDelimiter   string
	ImportDeviceFile  string
	ImportContentFile string

	LogLevel  string
	LogFormat string

	ListenerIntervalSec int
	ListenerAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		ImportDir:  getEnv("IMPORT_DIR", filepath.Join(cwd, "data", "import")),
		ArchiveDir: getEnv("ARCHIVE_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		ImportDelimiter:   getEnv("IMPORT_DELIMITER", ","),
		ImportDeviceFile:  getEnv("IMPORT_DEVICE_FILE", "devices.csv"),
		ImportContentFile: getEnv("IMPORT_CONTENT_FILE", "content.csv"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		ListenerIntervalSec: getEnvInt("LISTENER_INTERVAL_SEC", 300),
		ListenerAutoExport:  getEnvBool("LISTENER_AUTO_EXPORT", true),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, "DB_PATH is required")
	}
	if strings.TrimSpace(c.ImportDir) == "" {
		errs = append(errs, "IMPORT_DIR is required")
	}
	if err := ValidateDelimiter(c.ImportDelimiter); err != nil {
		errs = append(errs, "IMPORT_DELIMITER "+err.Error())
	}
	if strings.TrimSpace(c.ImportDeviceFile) == "" && strings.TrimSpace(c.ImportContentFile) == "" {
		errs = append(errs, "at least one of IMPORT_DEVICE_FILE, IMPORT_CONTENT_FILE is required")
	}
	if !logging.ValidFormat(c.LogFormat) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be text or json", c.LogFormat))
	}
	if c.ListenerIntervalSec <= 0 {
		errs = append(errs, "LISTENER_INTERVAL_SEC must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateDelimiter accepts exactly one character.
func ValidateDelimiter(delimiter string) error {
	if utf8.RuneCountInString(delimiter) != 1 {
		return fmt.Errorf("must be exactly one character, got %q", delimiter)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
