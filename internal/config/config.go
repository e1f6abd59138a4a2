package config // package config loads application configuration from environment variables

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environments recognised by APP_ENV.
const (
	EnvLocal       = "local"
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // application environment (local, development, production)
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing
	MetricsEnabled bool   // expose GET /metrics
}

// Load reads a .env file if one exists, then builds a Config from the
// environment.  Missing required variables terminate the process.
func Load() Config {
	cfg := LoadDB()
	cfg.Env = must("APP_ENV")
	cfg.Port = must("APP_PORT")
	cfg.JWTSecret = must("JWT_SECRET")
	cfg.AccessTTLMin = mustInt("ACCESS_TOKEN_TTL_MIN")
	cfg.RefreshTTLDays = mustInt("REFRESH_TOKEN_TTL_DAYS")
	cfg.BcryptCost = mustInt("BCRYPT_COST")
	cfg.MetricsEnabled = envBool("METRICS_ENABLED", true)
	return cfg
}

// LoadDB is Load restricted to the DB_* variables, for tools that only
// need a database connection.
func LoadDB() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	return Config{
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),
	}
}

// IsProduction reports whether internal error details should be hidden from
// API clients.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
