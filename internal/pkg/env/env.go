package env

import (
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

// Env holds the values of the .env file, process variables fill the gaps
var Env = map[string]string{}

// envFileCandidates covers starting from the repo root and from cmd/<name>
var envFileCandidates = []string{".env", "../../.env"}

func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return def
}

// GetEnvInt parses key as integer, def when unset or malformed
func GetEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return v
	}
	return def
}

// SetupEnvFile loads the first .env file found. Containers usually have
// none and pass everything through the environment.
func SetupEnvFile() {
	for _, path := range envFileCandidates {
		values, err := godotenv.Read(path)
		if err == nil {
			Env = values
			return
		}
	}
	Env = map[string]string{}
	log.Info("[Env] No .env file, using the process environment")
}

// IsDev is true for APP_ENV=dev
func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
