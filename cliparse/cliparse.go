package cliparse

import (
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string

	// Session policy
	SessionTTL time.Duration

	// Rate guard policy
	RateLimitEnabled bool
	LoginMaxAttempts int
	VoteMaxAttempts  int
	RateLimitWindow  time.Duration

	// Scheduler
	SchedulerInterval time.Duration

	// Bootstrap admin (optional; created at startup when missing)
	AdminEmail    string
	AdminPassword string
}

// ParseFlags validates flags, with environment variables as fallback
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet("vote-server", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")

	// Policy knobs
	sessionTTLHours := fs.Int("session-ttl", 0, "Session TTL in hours")
	rateDisabled := fs.Bool("no-rate-limit", false, "Disable the rate guard (dev only)")
	fs.IntVar(&cfg.LoginMaxAttempts, "login-attempts", 0, "Max login attempts per window")
	fs.IntVar(&cfg.VoteMaxAttempts, "vote-attempts", 0, "Max vote attempts per window")
	windowSeconds := fs.Int("rate-window", 0, "Rate guard window in seconds")
	tickSeconds := fs.Int("tick", 0, "Scheduler interval in seconds")

	// Bootstrap admin (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.AdminEmail, "admin-email", "", "Bootstrap admin email (prefer env)")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "", "Bootstrap admin password (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		if portStr := os.Getenv("PORT"); portStr != "" {
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return Config{}, errors.New("invalid PORT env variable")
			}
			cfg.Port = port
		} else {
			cfg.Port = 4000 // default
		}
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = "sqlite"
		}
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, errors.New("database type must be sqlite or postgres")
	}

	if *sessionTTLHours == 0 {
		if ttlStr := os.Getenv("SESSION_TTL_HOURS"); ttlStr != "" {
			ttl, err := strconv.Atoi(ttlStr)
			if err != nil || ttl <= 0 {
				return Config{}, errors.New("invalid SESSION_TTL_HOURS env variable")
			}
			*sessionTTLHours = ttl
		} else {
			*sessionTTLHours = 24
		}
	}
	cfg.SessionTTL = time.Duration(*sessionTTLHours) * time.Hour

	// Rate guard is on unless explicitly disabled. RATE_LIMIT_ENABLED=false
	// mirrors the dev setups that ran without it.
	cfg.RateLimitEnabled = !*rateDisabled
	if env := os.Getenv("RATE_LIMIT_ENABLED"); env != "" {
		enabled, err := strconv.ParseBool(env)
		if err != nil {
			return Config{}, errors.New("invalid RATE_LIMIT_ENABLED env variable")
		}
		cfg.RateLimitEnabled = enabled
	}
	if cfg.LoginMaxAttempts == 0 {
		cfg.LoginMaxAttempts = envIntDefault("LOGIN_MAX_ATTEMPTS", 5)
	}
	if cfg.VoteMaxAttempts == 0 {
		cfg.VoteMaxAttempts = envIntDefault("VOTE_MAX_ATTEMPTS", 3)
	}
	if *windowSeconds == 0 {
		*windowSeconds = envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 900)
	}
	cfg.RateLimitWindow = time.Duration(*windowSeconds) * time.Second

	if *tickSeconds == 0 {
		*tickSeconds = envIntDefault("SCHEDULER_INTERVAL_SECONDS", 60)
	}
	cfg.SchedulerInterval = time.Duration(*tickSeconds) * time.Second

	if cfg.AdminEmail == "" {
		cfg.AdminEmail = os.Getenv("ADMIN_EMAIL")
	}
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	}
	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		return Config{}, errors.New("ADMIN_PASSWORD required when ADMIN_EMAIL is set")
	}

	return cfg, nil
}

func envIntDefault(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}
