package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	BotToken string `json:"bot_token"`

	// GuildIDs optionally restricts which guilds are updated. Empty means
	// every guild the session can reach.
	GuildIDs []string `json:"guild_ids,omitempty"`

	IntervalSeconds int `json:"interval_seconds,omitempty"`
	JitterSeconds   int `json:"jitter_seconds,omitempty"`

	// Optional premium provider credential.
	FinnhubAPIKey string `json:"finnhub_api_key,omitempty"`

	Debug bool `json:"debug,omitempty"`
}

func DefaultConfigPath() string {
	if v := os.Getenv("ITB_CONFIG"); v != "" {
		return v
	}
	return "/etc/index-ticker-bot/config.json"
}

func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	var cfg Config
	// 1) Try file
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config json: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// 2) Env fallback / override
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("ITB_BOT_TOKEN"); v != "" {
		cfg.BotToken = v
	}
	if v := os.Getenv("ITB_GUILD_IDS"); v != "" {
		cfg.GuildIDs = splitCSV(v)
	}
	if v := os.Getenv("ITB_INTERVAL_SECONDS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.IntervalSeconds = x
		}
	}
	if v := os.Getenv("ITB_JITTER_SECONDS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.JitterSeconds = x
		}
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.FinnhubAPIKey = v
	}
	if v := os.Getenv("ITB_DEBUG"); v != "" {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}

	// Defaults
	if cfg.IntervalSeconds == 0 {
		cfg.IntervalSeconds = 30
	}
	if cfg.IntervalSeconds < 5 {
		cfg.IntervalSeconds = 5
	}
	if cfg.JitterSeconds == 0 {
		cfg.JitterSeconds = 3
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("missing bot_token (set in %s or BOT_TOKEN env)", path)
	}
	return cfg, nil
}

func (c Config) Interval() time.Duration { return time.Duration(c.IntervalSeconds) * time.Second }
func (c Config) Jitter() time.Duration   { return time.Duration(c.JitterSeconds) * time.Second }

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
