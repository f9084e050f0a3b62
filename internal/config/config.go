package config

import (
	"os"
	"sync"
	"time"
)

type Config struct {
	LogLevel         string
	LogFormat        string
	ExecTimeout      time.Duration
	HandshakeTimeout time.Duration
	AltScreen        bool
}

var (
	cacheTTL   = 10 * time.Second
	nowFunc    = time.Now
	cacheMu    sync.RWMutex
	cachedCfg  Config
	cachedAt   time.Time
	cacheValid bool

	defaultExecTimeoutSeconds      = 30
	defaultHandshakeTimeoutSeconds = 10
)

func LoadConfig() Config {
	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = nowFunc()
	cacheValid = true
	cacheMu.Unlock()
	return cfg
}

func GetConfig() *Config {
	now := nowFunc()
	cacheMu.RLock()
	valid := cacheValid && now.Sub(cachedAt) < cacheTTL
	if valid {
		out := cachedCfg
		cacheMu.RUnlock()
		return &out
	}
	cacheMu.RUnlock()

	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = now
	cacheValid = true
	cacheMu.Unlock()

	out := cfg
	return &out
}

func loadFromEnv() Config {
	level := os.Getenv("DEEPCODE_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("DEEPCODE_LOG_FORMAT")
	if format == "" {
		format = "json"
	}

	execTimeout := atoiOrDefault(os.Getenv("DEEPCODE_EXEC_TIMEOUT"), defaultExecTimeoutSeconds)
	handshakeTimeout := atoiOrDefault(os.Getenv("DEEPCODE_HANDSHAKE_TIMEOUT"), defaultHandshakeTimeoutSeconds)
	altScreen := os.Getenv("DEEPCODE_ALT_SCREEN") != "0"

	return Config{
		LogLevel:         level,
		LogFormat:        format,
		ExecTimeout:      time.Duration(execTimeout) * time.Second,
		HandshakeTimeout: time.Duration(handshakeTimeout) * time.Second,
		AltScreen:        altScreen,
	}
}

func atoiOrDefault(v string, fallback int) int {
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	if n == 0 {
		return fallback
	}
	return n
}
