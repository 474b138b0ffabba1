package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings" // strings normalizes DB_DRIVER
    "time"    // time parses SCHEDULER_INTERVAL

    "github.com/joho/godotenv" // godotenv loads a local .env file
)

// Supported DB_DRIVER values.
const (
    DriverMySQL  = "mysql"
    DriverSQLite = "sqlite"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env               string        // application environment (e.g. "dev", "prod")
    Port              string        // HTTP port to listen on
    DBDriver          string        // "mysql" (default) or "sqlite"
    DBPath            string        // sqlite database file
    DBUser            string        // database username
    DBPass            string        // database password (optional)
    DBHost            string        // database host address
    DBPort            string        // database port number
    DBName            string        // database name
    JWTSecret         string        // secret used to sign JWTs
    AccessTTLMin      int           // access token time-to-live in minutes
    BcryptCost        int           // bcrypt cost for password hashing
    SchedulerInterval time.Duration // delay between scheduler ticks
    Seed              SeedConfig
}

// SeedConfig names the author account created by cmd/seed.
type SeedConfig struct {
    Email    string
    Username string
    Password string
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when
// present; variables already set in the environment win.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
    // Load .env if present.  godotenv never overrides variables that are
    // already set, so the real environment wins.
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        log.Printf("config: ignoring .env: %v", err)
    }

    // Build the config; must() exits on missing required values.
    cfg := Config{
        Env:               must("APP_ENV"),
        Port:              must("APP_PORT"),
        DBDriver:          strings.ToLower(envStr("DB_DRIVER", DriverMySQL)),
        DBPath:            envStr("DB_PATH", "cms.db"),
        DBPass:            os.Getenv("DB_PASS"),
        JWTSecret:         must("JWT_SECRET"),
        AccessTTLMin:      mustInt("ACCESS_TOKEN_TTL_MIN"),
        BcryptCost:        mustInt("BCRYPT_COST"),
        SchedulerInterval: envDur("SCHEDULER_INTERVAL", 30*time.Second),
        Seed: SeedConfig{
            Email:    os.Getenv("SEED_AUTHOR_EMAIL"),
            Username: envStr("SEED_AUTHOR_USERNAME", "author"),
            Password: os.Getenv("SEED_AUTHOR_PASSWORD"),
        },
    }
    // The MySQL connection settings are only required when MySQL is used.
    switch cfg.DBDriver {
    case DriverMySQL:
        cfg.DBUser = must("DB_USER")
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
    case DriverSQLite:
        // DB_PATH already has a default.
    default:
        log.Fatalf("invalid DB_DRIVER: %q", cfg.DBDriver)
    }
    // A zero or negative interval would spin the scheduler.
    if cfg.SchedulerInterval <= 0 {
        cfg.SchedulerInterval = 30 * time.Second
    }
    return cfg
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

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
