package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	ServerPort string

	DispatchSecret string

	BatchSize         int
	MaxAttempts       int
	StaleClaimSeconds int

	APNSTeamID     string
	APNSKeyID      string
	APNSPrivateKey string
	APNSTopic      string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	batchSize, err := strconv.Atoi(os.Getenv("BATCH_SIZE"))
	if err != nil || batchSize <= 0 {
		batchSize = 25
	}

	maxAttempts, err := strconv.Atoi(os.Getenv("MAX_ATTEMPTS"))
	if err != nil || maxAttempts <= 0 {
		maxAttempts = 10
	}

	staleClaimSeconds, err := strconv.Atoi(os.Getenv("STALE_CLAIM_SECONDS"))
	if err != nil || staleClaimSeconds <= 0 {
		staleClaimSeconds = 600
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		ServerPort: serverPort,

		DispatchSecret: os.Getenv("DISPATCH_SECRET"),

		BatchSize:         batchSize,
		MaxAttempts:       maxAttempts,
		StaleClaimSeconds: staleClaimSeconds,

		APNSTeamID:     os.Getenv("APNS_TEAM_ID"),
		APNSKeyID:      os.Getenv("APNS_KEY_ID"),
		APNSPrivateKey: os.Getenv("APNS_PRIVATE_KEY"),
		APNSTopic:      os.Getenv("APNS_TOPIC"),
	}, nil
}

// ValidateAPNS checks that the provider credentials are complete. Without
// all four no send can succeed, so callers fail fast before touching the
// store.
func (c *Config) ValidateAPNS() error {
	if c.APNSTeamID == "" || c.APNSKeyID == "" || c.APNSPrivateKey == "" || c.APNSTopic == "" {
		return fmt.Errorf("incomplete APNs credentials: APNS_TEAM_ID, APNS_KEY_ID, APNS_PRIVATE_KEY and APNS_TOPIC are all required")
	}
	return nil
}
