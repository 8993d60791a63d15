// internal/config/config.go
package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	TokenSecret string
	MeiliURL    string
	MeiliKey    string
}

// Load reads configuration from the environment, preloading a local .env
// file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		TokenSecret: getEnv("TOKEN_SECRET", "dev_secret_change_in_prod"),
		MeiliURL:    os.Getenv("MEILI_URL"),
		MeiliKey:    os.Getenv("MEILI_KEY"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
