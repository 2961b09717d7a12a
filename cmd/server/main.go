package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitness-dashboard/internal/auth"
	"fitness-dashboard/internal/config"
	"fitness-dashboard/internal/handlers"
	"fitness-dashboard/internal/logging"
	"fitness-dashboard/internal/metrics"
	"fitness-dashboard/internal/middleware"
	"fitness-dashboard/internal/predictor"
	"fitness-dashboard/internal/storage"
	"fitness-dashboard/internal/workouts"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("load .env: %s", err)
	}

	configPath := flag.String("config", "config.toml", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogFile,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogJSON,
	})

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %s", err)
	}
	defer db.Close()

	users := openUserStore(cfg, db)

	model, err := predictor.Load(predictor.Options{Path: cfg.ModelPath, URL: cfg.ModelURL})
	if err != nil {
		log.Warnf("calorie model not loaded, predictions disabled: %s", err)
	}

	hasher, err := auth.NewHasher(auth.Scheme(cfg.PasswordScheme))
	if err != nil {
		log.Fatalf("invalid password scheme: %s", err)
	}

	metricsManager := metrics.NewManager("fitness", "dashboard", prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrapAdmin(ctx, users, hasher, cfg.AdminUser, cfg.AdminPassword); err != nil {
		log.Fatalf("failed to create admin user: %s", err)
	}

	h := handlers.NewHandlers(handlers.Params{
		Users:        users,
		Sessions:     db,
		Workouts:     workouts.NewService(users, predictor.NewAdapter(model)),
		Hasher:       hasher,
		Metrics:      metricsManager,
		TemplateDir:  cfg.TemplateDir,
		SecureCookie: cfg.SecureCookie,
	})

	router := setupRouter(h, cfg.StaticDir, metricsManager, cfg.CORSOrigins)

	go cleanupSessions(ctx, db, cfg.SessionCleanupInterval.Duration, metricsManager)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %s", err)
		}
	}()

	<-ctx.Done()
	log.Warn("shutdown signal received ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %s", err)
	}
	log.Warn("server shut down")
}

func openUserStore(cfg *config.Config, db *storage.DB) storage.Repository {
	if cfg.StoreBackend == config.BackendSQLite {
		count, err := db.UserCount(context.Background())
		if err != nil {
			log.Warnf("count users: %s", err)
		}
		log.Infof("user store: sqlite %s (%d users)", cfg.DBPath, count)
		return db
	}
	log.Infof("user store: json %s", cfg.StorePath)
	return storage.NewJSONStore(cfg.StorePath)
}

// bootstrapAdmin creates the configured admin account unless it already
// exists.
func bootstrapAdmin(ctx context.Context, users storage.Repository, hasher auth.Hasher, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	exists, err := storage.Exists(ctx, users, username)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := storage.CreateUser(ctx, users, username, hash); err != nil {
		return err
	}
	log.Infof("created admin user %s", username)
	return nil
}

type sessionCleaner interface {
	CleanExpiredSessions(ctx context.Context) (int64, error)
}

func cleanupSessions(ctx context.Context, sessions sessionCleaner, interval time.Duration, m *metrics.Manager) {
	cleanExpiredSessions(ctx, sessions, m)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanExpiredSessions(ctx, sessions, m)
		}
	}
}

func cleanExpiredSessions(ctx context.Context, sessions sessionCleaner, m *metrics.Manager) {
	n, err := sessions.CleanExpiredSessions(ctx)
	if err != nil {
		log.Errorf("clean expired sessions: %s", err)
		return
	}
	if n > 0 {
		m.CounterSessionsCleaned.Add(float64(n))
		log.Debugf("removed %d expired sessions", n)
	}
}

func setupRouter(h *handlers.Handlers, staticDir string, m *metrics.Manager, corsOrigins []string) *mux.Router {
	r := mux.NewRouter()

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	}).Methods(http.MethodGet)

	r.HandleFunc("/login", h.LoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/signup", h.SignupForm).Methods(http.MethodGet)
	r.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.Logout).Methods(http.MethodPost)

	r.Handle("/dashboard", h.AuthMiddleware(http.HandlerFunc(h.Dashboard))).Methods(http.MethodGet)
	r.Handle("/goal", h.AuthMiddleware(http.HandlerFunc(h.UpdateGoal))).Methods(http.MethodPost)
	r.Handle("/workouts", h.AuthMiddleware(http.HandlerFunc(h.LogWorkout))).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/dashboard", h.APIAuthMiddleware(http.HandlerFunc(h.DashboardAPI))).Methods(http.MethodGet, http.MethodOptions)
	if len(corsOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowCredentials: true,
		})
		api.Use(c.Handler)
	}

	r.Use(middleware.PanicRecovery(m))
	r.Use(middleware.RequestMetrics(m))
	r.Use(middleware.LogRequest())

	return r
}
