package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/v2i-traffic/config"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/api/http/routes"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/bootstrap"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/logger"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/storage/postgres"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/congestion"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
	traffichttp "github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/http"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/placement"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/repository"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/reroute"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/service"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/simulator"
	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("load config")
	}

	log, err := logger.Init(logger.Options{Level: cfg.App.LogLevel, Format: cfg.App.LogFormat})
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	networks := service.NewNetworkCatalog()
	if err := networks.LoadDir(cfg.Simulator.NetworkDir); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Simulator.NetworkDir).Msg("load networks")
	}
	log.Info().Strs("networks", networks.Names()).Msg("networks loaded")

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{
		DSN:      cfg.Database.DSN,
		MaxConns: 10,
		Init:     postgres.EnsureSchema,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open pgx pool")
	}
	defer pool.Close()

	sqlDB, err := postgres.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer sqlDB.Close()

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("open redis")
	}
	defer rdb.Close()

	artifacts, err := openArtifactStore(ctx, cfg.Artifacts)
	if err != nil {
		log.Fatal().Err(err).Msg("open artifact store")
	}

	sessionRepo := repository.NewSessionRepository(rdb)
	rerouteRepo := repository.NewRerouteRecordRepository(sqlDB)
	telemetryRepo := repository.NewTelemetryRepository(sqlDB)

	recorder := service.NewRecorder(rerouteRepo, telemetryRepo, sessionRepo, logger.Component("recorder"))
	if err := recorder.Start(cfg.Simulator.FlushSpec); err != nil {
		log.Fatal().Err(err).Msg("schedule recorder")
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)
	sessions := service.NewSessionService(sessionRepo, networks)
	placements := service.NewPlacementService(networks, artifacts, logger.Component("placement"))

	lanePolicy, err := placement.PolicyFor(cfg.Placement.Policy)
	if err != nil {
		log.Fatal().Err(err).Msg("sensor placement policy")
	}
	destination, err := reroute.PolicyFor(cfg.Reroute.DestinationPolicy, cfg.Reroute.DestinationEdge)
	if err != nil {
		log.Fatal().Err(err).Msg("destination policy")
	}

	newSim := func(ctx context.Context, s *domain.Session) (simulator.Simulator, error) {
		return traffichttp.NewSimulatorClient(cfg.Simulator.URL, s.SessionID, s.Network, cfg.Simulator.Timeout), nil
	}
	manager := service.NewManager(sessions, networks, placements, newSim, service.ManagerOptions{
		TickInterval: cfg.Simulator.TickInterval,
		MaxTicks:     cfg.Simulator.MaxTicks,
		Thresholds:   congestion.DefaultThresholds(),
		Metrics:      metrics,
		Sink:         recorder,
		Destination:  destination,
	}, logger.Component("manager"))

	handler := traffichttp.New(traffichttp.HandlerDeps{
		Sessions:   sessions,
		Manager:    manager,
		Placements: placements,
		Networks:   networks,
		Reroutes:   rerouteRepo,
		Telemetry:  telemetryRepo,
		Events:     sessionRepo,
		Logger:     logger.Component("http"),
		Placement: placement.Config{
			MinDistance:   cfg.Placement.MinDistance,
			MinLaneLength: cfg.Placement.MinLaneLength,
			Policy:        lanePolicy,
		},
	})

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "v2i-traffic",
		Version:     cfg.App.Version,
		DB:          pool,
		Redis:       rdb,
		Gatherer:    prometheus.DefaultGatherer,
		V1:          routes.V1Deps{Traffic: handler},
		Logger:      logger.Component("access"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := manager.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("stop sessions")
		}
		if err := recorder.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("final flush")
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func openArtifactStore(ctx context.Context, cfg config.ArtifactConfig) (repository.ArtifactStore, error) {
	if cfg.S3Bucket != "" {
		return repository.NewS3StoreFromEnv(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	}
	return repository.NewFileStore(cfg.Dir), nil
}
