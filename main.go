package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	alertapp "cityreport/internal/alerts/application"
	alerts "cityreport/internal/alerts/domain"
	alertmemory "cityreport/internal/alerts/infrastructure/memory"
	alertmongo "cityreport/internal/alerts/infrastructure/mongo"
	alertpostgres "cityreport/internal/alerts/infrastructure/postgres"
	alerthttp "cityreport/internal/alerts/interfaces/http"
	apihttp "cityreport/internal/api/http"
	"cityreport/internal/audit"
	"cityreport/internal/auth"
	incidentapp "cityreport/internal/incidents/application"
	incidentfile "cityreport/internal/incidents/infrastructure/file"
	incidenthttp "cityreport/internal/incidents/interfaces/http"
	"cityreport/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	alertsCfg, err := alertapp.LoadConfig()
	if err != nil {
		logger.Fatalf("alerts config error: %v", err)
	}

	metrics.Init()

	incidentStore, err := incidentfile.NewStore(cfg.IncidentsFile, alertsCfg.AuditCapacity)
	if err != nil {
		logger.Fatalf("incident store error: %v", err)
	}
	incidentService, err := incidentapp.NewService(incidentStore, incidentStore, incidentStore.Audits(), incidentapp.WithLogger(logger))
	if err != nil {
		logger.Fatalf("incident service error: %v", err)
	}

	alertRepo, alertAudit, cleanup, err := buildAlertBackend(cfg, alertsCfg, logger)
	if err != nil {
		logger.Fatalf("alert backend error: %v", err)
	}
	defer cleanup()

	alertService, err := alertapp.NewService(alertRepo, alertAudit,
		alertapp.WithLogger(logger),
		alertapp.WithActiveLimit(alertsCfg.ActiveLimit),
	)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}

	incidentHandler, err := incidenthttp.NewHandler(incidentService)
	if err != nil {
		logger.Fatalf("incident handler error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertService)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	exportHandler, err := apihttp.NewExportHandler(incidentService, alertService)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/incidents", incidentHandler)
	mux.Handle("/api/v1/incidents/", incidentHandler)
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/exports/", exportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

// buildAlertBackend selects the alert repository and audit sink for the
// configured backend. The returned cleanup closes any open connection.
func buildAlertBackend(cfg config, alertsCfg alertapp.Config, logger *log.Logger) (alerts.Repository, audit.Logger, func(), error) {
	noop := func() {}
	switch alertsCfg.Backend {
	case alertapp.BackendMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(alertsCfg.MongoURI))
		if err != nil {
			return nil, nil, noop, err
		}
		cleanup := func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := client.Disconnect(shutdownCtx); err != nil {
				logger.Printf("mongo disconnect error: %v", err)
			}
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			cleanup()
			return nil, nil, noop, err
		}
		db := client.Database(alertsCfg.MongoDatabase)
		repo, err := alertmongo.NewRepository(db.Collection(alertsCfg.AlertsCollection))
		if err != nil {
			cleanup()
			return nil, nil, noop, err
		}
		auditLog, err := audit.NewMongoLog(db.Collection(alertsCfg.SystemLogsCollection))
		if err != nil {
			cleanup()
			return nil, nil, noop, err
		}
		return repo, auditLog, cleanup, nil
	case alertapp.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, noop, errAlertPostgresDSN
		}
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, noop, err
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, nil, noop, err
		}
		repo, err := alertpostgres.NewRepository(db)
		if err != nil {
			_ = db.Close()
			return nil, nil, noop, err
		}
		return repo, audit.NewLedger(alertsCfg.AuditCapacity), func() { _ = db.Close() }, nil
	default:
		return alertmemory.NewRepository(), audit.NewLedger(alertsCfg.AuditCapacity), noop, nil
	}
}

var errAlertPostgresDSN = errors.New("alerts backend postgres requires DATABASE_URL")

type config struct {
	HTTPAddr      string
	IncidentsFile string
	DatabaseURL   string
	JWTSecret     string
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		IncidentsFile: getenvDefault("INCIDENTS_FILE", "data/incidents.json"),
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, fmt.Sprintf("%d", resp.status), elapsed.Seconds())
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, elapsed)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
