package store

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'user',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tasks (
    id SERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    priority TEXT NOT NULL DEFAULT 'medium',
    due_date TIMESTAMPTZ,
    created_by INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tasks_created_by_status ON tasks (created_by, status);`

// InitDB opens the Postgres connection and ensures the schema exists.
// A missing or unreachable database is a fatal startup error.
func InitDB(dsn string) *sql.DB {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logrus.Fatalf("FATAL: Could not connect to the database: %v", err)
	}

	if err = db.Ping(); err != nil {
		logrus.Fatalf("FATAL: Could not ping the database: %v", err)
	}

	if _, err = db.Exec(schemaSQL); err != nil {
		logrus.Fatalf("FATAL: Could not create tables: %v", err)
	}

	logrus.Info("Database connection successful and tables created.")
	return db
}

// InitRedis connects the cache client. Redis is optional; callers pass the
// returned client (or nil) to NewTaskStore.
func InitRedis(addr string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("FATAL: Could not connect to Redis: %v for %s", err, addr)
	}
	logrus.Info("Redis connection successful.")

	return rdb
}
