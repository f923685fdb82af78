package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override config.json
const (
	EnvShow       = "LIGHTSYNTH_SHOW"
	EnvTickHz     = "LIGHTSYNTH_TICK_HZ"
	EnvHTTPAddr   = "LIGHTSYNTH_HTTP_ADDR"
	EnvLogLevel   = "LIGHTSYNTH_LOG_LEVEL"
	EnvSerialPort = "LIGHTSYNTH_SERIAL_PORT"
	EnvSerialBaud = "LIGHTSYNTH_SERIAL_BAUD"
	EnvArtNetAddr = "LIGHTSYNTH_ARTNET_ADDR"
)

// LoadEnv reads .env files into the environment. A missing file is an error
// callers can ignore. With no paths, ".env" is used.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// ApplyEnv overrides config fields from the environment
func (c *Config) ApplyEnv() {
	c.ShowPath = GetEnv(EnvShow, c.ShowPath)
	c.TickHz = GetEnvInt(EnvTickHz, c.TickHz)
	c.HTTPAddr = GetEnv(EnvHTTPAddr, c.HTTPAddr)
	c.LogLevel = GetEnv(EnvLogLevel, c.LogLevel)
	c.Outputs.Serial.Port = GetEnv(EnvSerialPort, c.Outputs.Serial.Port)
	c.Outputs.Serial.Baud = GetEnvInt(EnvSerialBaud, c.Outputs.Serial.Baud)
	c.Outputs.ArtNet.Addr = GetEnv(EnvArtNetAddr, c.Outputs.ArtNet.Addr)
}
