package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvString returns a trimmed environment value and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment value.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvInt64 parses a 64-bit integer environment value such as a chat id.
func EnvInt64(key string) (int64, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvDuration parses a Go duration environment value ("15m", "3s").
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// EnvBool parses a boolean environment value.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return b, true, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables on c.
func (c *Config) ApplyEnv() error {
	if v, ok := EnvString("TELEGRAM_BOT_TOKEN"); ok {
		c.BotToken = v
	}
	if v, ok, err := EnvInt64("TELEGRAM_CHANNEL_ID"); err != nil {
		return err
	} else if ok {
		c.ChannelID = v
	}
	if v, ok, err := EnvInt64("TELEGRAM_OWNER_ID"); err != nil {
		return err
	} else if ok {
		c.OwnerID = v
	}
	if v, ok := EnvString("PORT"); ok {
		c.HealthAddr = ":" + v
	}
	if v, ok := EnvString("RELAY_BASE_URL"); ok {
		c.BaseURL = v
	}
	if v, ok, err := EnvDuration("RELAY_POLL_INTERVAL"); err != nil {
		return err
	} else if ok {
		c.PollInterval = v
	}
	if v, ok, err := EnvDuration("RELAY_PACING_DELAY"); err != nil {
		return err
	} else if ok {
		c.PacingDelay = v
	}
	if v, ok, err := EnvInt("RELAY_MAX_TOPICS"); err != nil {
		return err
	} else if ok {
		c.MaxTopics = v
	}
	if v, ok, err := EnvInt("RELAY_TOPIC_WORKERS"); err != nil {
		return err
	} else if ok {
		c.TopicWorkers = v
	}
	if v, ok := EnvString("RELAY_LEDGER_BACKEND"); ok {
		c.LedgerBackend = strings.ToLower(v)
	}
	if v, ok := EnvString("RELAY_LEDGER_PATH"); ok {
		c.LedgerPath = v
	}
	if v, ok, err := EnvInt("RELAY_LEDGER_MAX_ENTRIES"); err != nil {
		return err
	} else if ok {
		c.LedgerMaxEntries = v
	}
	if v, ok := EnvString("RELAY_JOURNAL"); ok {
		c.JournalFile = v
	}
	if v, ok, err := EnvBool("RELAY_VERBOSE"); err != nil {
		return err
	} else if ok {
		c.Verbose = v
	}
	return nil
}
