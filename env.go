package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type config struct {
	dbSource   string
	redisAddr  string
	jwtSecret  string
	port       string
	corsOrigin string
}

// loadConfig reads process configuration. DB_SOURCE and JWT_SECRET are
// required; the process refuses to start without them.
func loadConfig() config {
	_ = godotenv.Load() // load .env if present (ok if missing in prod)

	cfg := config{
		dbSource:   os.Getenv("DB_SOURCE"),
		redisAddr:  os.Getenv("REDIS_ADDR"),
		jwtSecret:  os.Getenv("JWT_SECRET"),
		port:       envOr("PORT", "8080"),
		corsOrigin: envOr("CORS_ORIGIN", "http://localhost:3000"),
	}
	if cfg.dbSource == "" {
		logrus.Fatal("FATAL: DB_SOURCE environment variable is not set.")
	}
	if cfg.jwtSecret == "" {
		logrus.Fatal("FATAL: JWT_SECRET environment variable is not set.")
	}
	return cfg
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
