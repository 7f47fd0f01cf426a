// Package config loads daemon configuration from the environment at
// startup, grounded on the original Python pipeline's os_env.py
// (load once, module-level constants with defaults) generalized into a
// single struct the way the teacher's collector.DefaultConfig groups
// related knobs.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived daemon setting. Missing
// optional values disable their feature rather than blocking startup
// (spec.md §6).
type Config struct {
	EventsDir string

	SQLDSN string

	ChromaDir string
	ChromaURL string

	OllamaBaseURL string

	ServerHost string
	ServerPort int

	VTAPIKey    string
	MBURL       string
	URLHausURL  string
	AbuseIPDBKey string
}

// Load reads configuration from the process environment. A .env file in
// the working directory is loaded first if present (ignored if absent),
// matching os_env.py's load_dotenv() call.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		EventsDir:     getEnv("EVENTS_DIR", "./events"),
		SQLDSN:        getEnv("SQL_DSN", "postgres://localhost:5432/syswatch?sslmode=disable"),
		ChromaDir:     getEnv("CHROMA_DIR", "./vector_db"),
		ChromaURL:     getEnv("CHROMA_URL", "http://127.0.0.1:8000"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://127.0.0.1:11434"),
		ServerHost:    getEnv("SERVER_HOST", "127.0.0.1"),
		ServerPort:    getEnvInt("SERVER_PORT", 8080),
		VTAPIKey:      os.Getenv("VT_API_KEY"),
		MBURL:         getEnv("MB_URL", "https://mb-api.abuse.ch/api/v1/"),
		URLHausURL:    getEnv("URLHAUS_URL", "https://urlhaus-api.abuse.ch/v1/"),
		AbuseIPDBKey:  os.Getenv("ABUSEIPDB_KEY"),
	}
}

// ThreatIntelEnabled reports whether a VirusTotal API key is configured.
// The MalwareBazaar and URLHaus settings are not considered.
func (c Config) ThreatIntelEnabled() bool {
	return c.VTAPIKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
