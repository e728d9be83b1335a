package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wisefido-telemetry/internal/alerting"
	"wisefido-telemetry/internal/common/database"
	"wisefido-telemetry/internal/common/logger"
	mqttcommon "wisefido-telemetry/internal/common/mqtt"
	commonredis "wisefido-telemetry/internal/common/redis"
	"wisefido-telemetry/internal/config"
	httpapi "wisefido-telemetry/internal/http"
	"wisefido-telemetry/internal/provisioning"
	"wisefido-telemetry/internal/registry"
	"wisefido-telemetry/internal/repository"
	"wisefido-telemetry/internal/service"
	"wisefido-telemetry/internal/store"
)

func main() {
	// 1. config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. logger
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-telemetry")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := registry.New(log)
	hub := httpapi.NewStreamHub(log)
	opts := service.Options{
		StatusObservers: []service.StatusObserver{hub},
	}

	var alarmSinks []alerting.AlarmSink
	var alarmLister httpapi.AlarmLister

	// 3. optional Redis: reading stream + alarm cache
	if cfg.RedisEnabled {
		redisClient := commonredis.NewRedisClient(&cfg.Redis)
		if err := commonredis.Ping(ctx, redisClient); err != nil {
			log.Warn("Redis enabled but ping failed, continuing without it", zap.Error(err))
			_ = commonredis.Close(redisClient)
		} else {
			defer commonredis.Close(redisClient)
			opts.ReadingObservers = append(opts.ReadingObservers, store.NewReadingPublisher(
				redisClient,
				cfg.Telemetry.StreamName,
				cfg.Telemetry.StreamMaxLen,
				cfg.Telemetry.LatestTTL,
				log,
			))
			alarmCache := store.NewAlarmCache(store.NewRedisKV(redisClient), cfg.Alerting.AlarmTTL, log)
			alarmSinks = append(alarmSinks, alarmCache)
			alarmLister = alarmCache
			log.Info("Redis enabled for wisefido-telemetry", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// 4. optional Postgres: alarm history
	if cfg.DBEnabled {
		if db, err := database.NewPostgresDB(&cfg.Database); err != nil {
			log.Warn("DB enabled but connection failed, continuing without it", zap.Error(err))
		} else {
			defer database.Close(db)
			alarmRepo := repository.NewAlarmEventsRepository(db, log)
			if err := alarmRepo.EnsureSchema(ctx); err != nil {
				log.Warn("Failed to ensure alarm_events schema", zap.Error(err))
			}
			alarmSinks = append(alarmSinks, alarmRepo)
			alarmLister = alarmRepo
			log.Info("DB enabled for wisefido-telemetry")
		}
	}

	// 5. alerting, then display hub
	if cfg.Alerting.Enabled {
		evaluator := alerting.NewEvaluator(
			alerting.ThresholdsFromConfig(cfg.Alerting),
			reg,
			cfg.Alerting.Cooldown,
			log,
			alarmSinks...,
		)
		opts.ReadingObservers = append(opts.ReadingObservers, evaluator)
	}
	opts.ReadingObservers = append(opts.ReadingObservers, hub)

	// 6. optional MQTT: live source + remote commands
	if cfg.MQTT.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, log)
		if err != nil {
			log.Warn("MQTT enabled but connection failed, continuing without it", zap.Error(err))
		} else {
			defer mqttClient.Disconnect()
			opts.MQTT = mqttClient
		}
	}

	if cfg.Provisioning.URL != "" {
		opts.Provisioner = provisioning.NewClient(cfg.Provisioning.URL, cfg.Provisioning.Timeout, log)
	}

	// 7. telemetry service
	telemetry := service.NewTelemetryService(cfg, reg, log, opts)
	if err := telemetry.Start(ctx); err != nil {
		log.Fatal("Failed to start telemetry service", zap.Error(err))
	}
	defer telemetry.Stop()

	// 8. HTTP
	router := httpapi.NewRouter(log)
	router.RegisterHealthRoutes()
	router.RegisterTelemetryRoutes(httpapi.NewTelemetryHandler(telemetry, alarmLister, hub, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error", zap.Error(err))
		}
	}
	cancel()

	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}

	log.Info("wisefido-telemetry stopped")
}
