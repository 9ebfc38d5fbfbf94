package config

import (
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Persistence backends for the legacy document.
const (
	PersistFile     = "file"
	PersistPostgres = "postgres"
	PersistNone     = "none"
)

// Config holds the server configuration, read from the environment with an
// optional .env file.
type Config struct {
	Host        string
	Port        string
	DataFile    string
	Persistence string
	DatabaseURL string
	RoomTTL     time.Duration
}

// Load reads configuration. A missing .env file is fine; the environment
// alone is enough.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: could not load .env: %v", err)
	}

	cfg := &Config{
		Host:        getEnv("HOST", ""),
		Port:        getEnv("PORT", "3001"),
		DataFile:    getEnv("DATA_FILE", "data/data.json"),
		Persistence: getEnv("PERSIST", PersistFile),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RoomTTL:     30 * time.Minute,
	}
	if raw := os.Getenv("ROOM_TTL_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			log.Printf("config: invalid ROOM_TTL_MINUTES %q, keeping default", raw)
		} else {
			cfg.RoomTTL = time.Duration(minutes) * time.Minute
		}
	}
	return cfg
}

// ServerAddr returns the host:port listen address.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
