package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"flexdx-bridge/internal/cluster"
	"flexdx-bridge/internal/config"
	"flexdx-bridge/internal/domain"
	"flexdx-bridge/internal/enrichment"
	"flexdx-bridge/internal/gateway"
	"flexdx-bridge/internal/observability"
	"flexdx-bridge/internal/pipeline"
	"flexdx-bridge/internal/radio"
	"flexdx-bridge/internal/storage"
	chstore "flexdx-bridge/internal/storage/clickhouse"
	"flexdx-bridge/internal/storage/memory"
	"flexdx-bridge/internal/storage/migrations"
	pgstore "flexdx-bridge/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	configPath := flag.String("config", envOr("STATION_CONFIG", "station.ini"), "Station configuration file")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for the spot archive")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string for the activity timeseries")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage regardless of DSNs")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Config: %v", err)
	}
	if cfg.Station.Callsign == "" {
		logger.Fatal("Config: station callsign is required")
	}
	if cfg.Cluster.Primary == "" {
		logger.Fatal("Config: cluster primary host is required")
	}
	if cfg.Radio.Addr == "" {
		logger.Fatal("Config: radio address is required")
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *postgresDSN == "" {
		*postgresDSN = cfg.Storage.PostgresDSN
	}
	if *clickhouseDSN == "" {
		*clickhouseDSN = cfg.Storage.ClickhouseDSN
	}
	if cfg.Storage.UseMemory {
		*useMemory = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Archives default to in-memory; DSNs select the real backends.
	var spotLog storage.SpotLogStore = memory.NewSpotLogStore()
	var activity storage.ActivityStore = memory.NewActivityStore()

	if !*useMemory && *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Postgres migrations: %v", err)
		}
		spotLog = pgstore.NewSpotLogStore(pool)
		logger.Println("Spot archive: postgres")
	}
	if !*useMemory && *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("ClickHouse: %v", err)
		}
		defer conn.Close()
		activity = chstore.NewActivityStore(conn)
		logger.Println("Activity timeseries: clickhouse")
	}

	// The lookup collaborator is external; without one registered, spots
	// flow through with an empty contact history.
	cache := enrichment.NewCache(cfg.EnrichmentConfig(), noopLookup(), log.New(os.Stdout, "[enrichment] ", log.LstdFlags))

	clusterClient := cluster.New(cfg.ClusterConfig(), log.New(os.Stdout, "[cluster] ", log.LstdFlags))
	radioClient := radio.New(cfg.RadioConfig(), log.New(os.Stdout, "[radio] ", log.LstdFlags))

	pipe := pipeline.New(pipeline.Options{
		Spots:          clusterClient.Spots(),
		ClusterStatus:  clusterClient.Status(),
		RadioEvents:    radioClient.Events(),
		Enricher:       cache,
		Radio:          radioClient,
		SpotLog:        spotLog,
		Activity:       activity,
		HealthInterval: cfg.Server.HealthInterval,
		Logger:         log.New(os.Stdout, "[pipeline] ", log.LstdFlags),
	})

	hub := gateway.NewHub(log.New(os.Stdout, "[gateway] ", log.LstdFlags))
	go func() {
		for ev := range pipe.Events() {
			hub.Broadcast(ev)
		}
	}()

	start := time.Now()
	mux := http.NewServeMux()
	mux.Handle("/events", hub)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, r.Context(), statusDeps{
			start:    start,
			cluster:  clusterClient,
			radio:    radioClient,
			cache:    cache,
			spotLog:  spotLog,
			activity: activity,
		})
	})

	httpSrv := &http.Server{Addr: cfg.Server.Listen, Handler: mux}
	go func() {
		logger.Printf("HTTP listening on %s", cfg.Server.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
		}
	}()

	pipe.Start()
	radioClient.Start()
	clusterClient.Start()
	logger.Printf("Bridge running as %s (cluster %s, radio %s)", cfg.Station.Callsign, cfg.Cluster.Primary, cfg.Radio.Addr)

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Printf("Received signal %v, shutting down...", sig)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)

	clusterClient.Close()
	radioClient.Close()
	pipe.Close()
	hub.Close()
	cancel()

	logger.Println("Shutdown complete")
}

// noopLookup is the placeholder enrichment source: every callsign comes
// back with no contact history and no LoTW account.
func noopLookup() enrichment.Lookup {
	return enrichment.LookupFunc(func(ctx context.Context, call string, band domain.Band, mode domain.Mode) (*enrichment.LookupResult, error) {
		return &enrichment.LookupResult{NotLoTWMember: true}, nil
	})
}

type statusDeps struct {
	start    time.Time
	cluster  *cluster.Client
	radio    *radio.Client
	cache    *enrichment.Cache
	spotLog  storage.SpotLogStore
	activity storage.ActivityStore
}

// writeStatus renders the /status JSON snapshot.
func writeStatus(w http.ResponseWriter, ctx context.Context, deps statusDeps) {
	now := time.Now()

	archived, err := deps.spotLog.CountSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		archived = -1
	}
	totals, err := deps.activity.BandTotals(ctx, now.Add(-time.Hour))
	if err != nil {
		totals = nil
	}

	status := struct {
		UptimeSeconds  int64                 `json:"uptime_seconds"`
		Cluster        string                `json:"cluster"`
		RadioConnected bool                  `json:"radio_connected"`
		Cache          domain.CacheHealth    `json:"cache"`
		ArchivedLast24 int64                 `json:"archived_last_24h"`
		BandActivity   map[domain.Band]int64 `json:"band_activity_last_hour"`
	}{
		UptimeSeconds:  int64(now.Sub(deps.start).Seconds()),
		Cluster:        deps.cluster.State().String(),
		RadioConnected: deps.radio.Connected(),
		Cache:          deps.cache.Health(),
		ArchivedLast24: archived,
		BandActivity:   totals,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// envOr returns the environment value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
