// Package config collects the runtime settings of the plant emulation from
// environment variables. Every setting has a workable default so the binary
// comes up as a believable plant with no configuration at all.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines the runtime configuration.
type Config struct {
	HTTPAddr   string
	ModbusAddr string
	SNMPAddr   string

	Deterministic bool
	Seed          int64
	TickInterval  time.Duration

	ScenariosFile string
	Facility      string

	JWTSecret string

	WebhookURL   string
	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	AuditLog string
	LogLevel string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		ModbusAddr:    getenvDefault("MODBUS_ADDR", ":502"),
		SNMPAddr:      getenvDefault("SNMP_ADDR", "0.0.0.0:161"),
		Deterministic: getenvBool("DETERMINISTIC", true),
		Seed:          int64(getenvInt("RANDOM_SEED", 42)),
		TickInterval:  getenvDuration("TICK_INTERVAL", time.Second),
		ScenariosFile: getenvDefault("SCENARIOS_FILE", ""),
		Facility:      getenvDefault("FACILITY", "WWTP Nove Mesto nad Metuji (NMM-CZ-01)"),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WebhookURL:    getenvDefault("ALARM_WEBHOOK_URL", ""),
		MQTTBroker:    getenvDefault("MQTT_BROKER", ""),
		MQTTTopic:     getenvDefault("MQTT_TOPIC", "wwtp/alarms"),
		MQTTClientID:  getenvDefault("MQTT_CLIENT_ID", "wwtp-nmm-01"),
		AuditLog:      getenvDefault("AUDIT_LOG", ""),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	return value == "true" || value == "1" || value == "yes"
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
