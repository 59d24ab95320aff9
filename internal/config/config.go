// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "FEEDVIEWER_"

// Config holds every tunable of the CLI, the relay and the viewer.
type Config struct {
	ListenAddr    string
	AllowedDomain string
	UpstreamBase  string
	LocalRelay    string
	RelaysFile    string
	PrefsPath     string
	LogLevel      string
	LogFormat     string
	UserAgent     string

	PageSize      int
	BatchWidth    int
	BatchPause    time.Duration
	SlideInterval time.Duration
	Timeout       time.Duration

	UpstreamRPS   float64
	UpstreamBurst int
}

// DefaultUserAgent is sent upstream; the listing API rejects blank agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Load reads envFiles (".env" when none are given; missing files are
// ignored) and then builds a Config from FEEDVIEWER_* variables.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables already set in the process.
		_ = godotenv.Load(f)
	}

	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		AllowedDomain: getEnv("ALLOWED_DOMAIN", "reddit.com"),
		UpstreamBase:  getEnv("UPSTREAM_BASE", "https://www.reddit.com"),
		LocalRelay:    getEnv("LOCAL_RELAY", "http://localhost:8080/api/proxy"),
		RelaysFile:    getEnv("RELAYS_FILE", ""),
		PrefsPath:     getEnv("PREFS_PATH", defaultPrefsPath()),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		UserAgent:     getEnv("USER_AGENT", DefaultUserAgent),

		PageSize:      getInt("PAGE_SIZE", 25),
		BatchWidth:    getInt("BATCH_WIDTH", 5),
		BatchPause:    getDuration("BATCH_PAUSE", 100*time.Millisecond),
		SlideInterval: getDuration("SLIDE_INTERVAL", 5*time.Second),
		Timeout:       getDuration("TIMEOUT", 15*time.Second),

		UpstreamRPS:   getFloat("UPSTREAM_RPS", 10),
		UpstreamBurst: getInt("UPSTREAM_BURST", 5),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil && f > 0 {
		return f
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return fallback
}

// defaultPrefsPath mirrors the per-user config directory convention.
func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "feedviewer", "prefs.json")
}
