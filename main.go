package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"tasktrack/auth"
	"tasktrack/store"
	"tasktrack/tasks"
)

func initLogger() {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	})
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}
}

// newRouter wires middleware and routes around the app. Split out of main so
// tests can assemble the same router over fake stores.
func newRouter(a *app, gate *auth.Gate, corsOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(metricsMiddleware)

	var origins []string
	for _, p := range strings.Split(corsOrigin, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
	})
	r.Handle("/metrics", metricsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", a.register)
		r.Post("/auth/login", a.login)

		// Everything below requires a verified bearer token.
		r.Group(func(r chi.Router) {
			r.Use(gate.Middleware)

			r.Get("/auth/me", a.me)
			r.Get("/auth/users", a.listUsers)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", a.listTasks)
				r.Post("/", a.createTask)
				r.Get("/stats", a.taskStats)
				r.Get("/{id}", a.getTask)
				r.Put("/{id}", a.updateTask)
				r.Delete("/{id}", a.deleteTask)
			})
		})
	})

	return r
}

func main() {
	initLogger()
	cfg := loadConfig()

	db := store.InitDB(cfg.dbSource)
	defer db.Close()

	taskStore := store.NewTaskStore(db, nil)
	if cfg.redisAddr != "" {
		taskStore = store.NewTaskStore(db, store.InitRedis(cfg.redisAddr))
	} else {
		logrus.Warn("REDIS_ADDR not set; task cache disabled")
	}

	userStore := store.NewUserStore(db)
	tokens := auth.NewTokenService([]byte(cfg.jwtSecret))
	gate := auth.NewGate(tokens, userStore)

	a := &app{
		users:  userStore,
		tasks:  tasks.New(taskStore),
		tokens: tokens,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           newRouter(a, gate, cfg.corsOrigin),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logrus.Infof("API listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logrus.Fatalf("FATAL: Server failed to start: %v", err)
	}
}
