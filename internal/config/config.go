package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the tabtitled daemon.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// HTTP surface
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Tab matching and behavior
	TabURLFilter    string
	RulesFile       string
	SyncIntervalMS  int
	EvalTimeoutMS   int
	PromptTimeoutMS int
	LegacyVariables string

	// BusURL joins a remote broadcast channel instead of hosting one.
	BusURL string

	// Optional browser launch
	LaunchBrowser bool
	StartURL      string
	ProfileDir    string

	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:       getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9222),
		BindAddr:         getEnvOrDefault("TABTITLE_BIND_ADDR", "127.0.0.1:8190"),
		PortCandidates:   getEnvListOrDefault("TABTITLE_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192", "127.0.0.1:8193"}),
		PortAutoFallback: getEnvBoolOrDefault("TABTITLE_PORT_AUTO_FALLBACK", true),
		TabURLFilter:     getEnvOrDefault("TABTITLE_TAB_URL_FILTER", ""),
		RulesFile:        getEnvOrDefault("TABTITLE_RULES_FILE", ""),
		SyncIntervalMS:   getEnvIntOrDefault("TABTITLE_SYNC_INTERVAL_MS", 2000),
		EvalTimeoutMS:    getEnvIntOrDefault("TABTITLE_EVAL_TIMEOUT_MS", 5000),
		PromptTimeoutMS:  getEnvIntOrDefault("TABTITLE_PROMPT_TIMEOUT_MS", 120000),
		LegacyVariables:  strings.ToLower(getEnvOrDefault("TABTITLE_LEGACY_VARIABLES", "apply")),
		BusURL:           getEnvOrDefault("TABTITLE_BUS_URL", ""),
		LaunchBrowser:    getEnvBoolOrDefault("TABTITLE_LAUNCH_BROWSER", false),
		StartURL:         getEnvOrDefault("TABTITLE_START_URL", "http://127.0.0.1:8188/"),
		ProfileDir:       getEnvOrDefault("TABTITLE_PROFILE_DIR", "./browser_profile"),
		LogLevel:         strings.ToLower(getEnvOrDefault("TABTITLE_LOG_LEVEL", "info")),
		LogFile:          getEnvOrDefault("TABTITLE_LOG_FILE", "logs/tabtitled.log"),
	}
	if cfg.EvalTimeoutMS < 1000 {
		cfg.EvalTimeoutMS = 1000
	}
	if cfg.SyncIntervalMS < 250 {
		cfg.SyncIntervalMS = 250
	}
	if cfg.PromptTimeoutMS < cfg.EvalTimeoutMS {
		cfg.PromptTimeoutMS = cfg.EvalTimeoutMS
	}
	switch cfg.LegacyVariables {
	case "apply", "ignore":
	default:
		return nil, fmt.Errorf("TABTITLE_LEGACY_VARIABLES must be apply or ignore, got %q", cfg.LegacyVariables)
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMS) * time.Millisecond
}

func (c *Config) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutMS) * time.Millisecond
}

func (c *Config) PromptTimeout() time.Duration {
	return time.Duration(c.PromptTimeoutMS) * time.Millisecond
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvListOrDefault splits a comma separated value, dropping empty items.
func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
