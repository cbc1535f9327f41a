package config // package config loads application configuration from environment variables

import (
	"fmt"     // fmt formats configuration errors
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings trims duration suffixes
	"time"    // time parses token lifetimes

	"github.com/joho/godotenv" // godotenv loads a local .env file when present
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets and identifiers are strings; lifetimes
// are parsed into durations once at startup.
type Config struct {
	Env           string        // application environment (e.g. "dev", "prod")
	Port          string        // HTTP port to listen on
	DBUser        string        // database username
	DBPass        string        // database password (optional)
	DBHost        string        // database host address
	DBPort        string        // database port number
	DBName        string        // database name
	JWTSecret     string        // secret used to sign JWTs
	JWTExpiry     time.Duration // lifetime of issued tokens (JWT_EXPIRES_IN)
	BcryptCost    int           // bcrypt cost for password hashing
	AdminEmail    string        // email of the seeded admin account
	AdminPassword string        // password of the seeded admin account
	LogLevel      string        // slog level name
}

// LoadDotenv reads a .env file from the working directory into the process
// environment.  A missing file is not an error; variables already set in the
// environment win over the file.
func LoadDotenv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	expiry, err := ParseExpiry(envStr("JWT_EXPIRES_IN", "24h"))
	if err != nil {
		log.Fatalf("invalid JWT_EXPIRES_IN: %v", err)
	}
	return Config{
		Env:           envStr("APP_ENV", "dev"),
		Port:          envStr("APP_PORT", "3001"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        must("DB_HOST"),
		DBPort:        envStr("DB_PORT", "3306"),
		DBName:        must("DB_NAME"),
		JWTSecret:     must("JWT_SECRET"),
		JWTExpiry:     expiry,
		BcryptCost:    envInt("BCRYPT_COST", 10),
		AdminEmail:    envStr("ADMIN_EMAIL", "admin@gamezone.com"),
		AdminPassword: envStr("ADMIN_PASSWORD", "admin123"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
	}
}

// ParseExpiry accepts Go durations ("90m", "24h") and whole days ("7d"), the
// two forms JWT_EXPIRES_IN has historically used.
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive, got %q", s)
	}
	return d, nil
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
