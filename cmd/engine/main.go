// Command engine wires the full core: persistence, the MQTT broker
// connection, the ingestion/state-sync/pairing workers, the automation
// engine and its bounded task-queue worker pool, and the cron-driven
// ambient jobs (§2 Component Map).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sdhome/internal/automation"
	"sdhome/internal/broadcaster"
	"sdhome/internal/clock"
	"sdhome/internal/config"
	"sdhome/internal/e2e"
	"sdhome/internal/ingestion"
	"sdhome/internal/logging"
	"sdhome/internal/mapper"
	"sdhome/internal/mqttclient"
	"sdhome/internal/pairing"
	"sdhome/internal/projection"
	"sdhome/internal/publisher"
	"sdhome/internal/redisclient"
	"sdhome/internal/ruleindex"
	"sdhome/internal/scheduler"
	"sdhome/internal/signals"
	"sdhome/internal/statesync"
	"sdhome/internal/store/postgres"
	"sdhome/internal/sun"
	"sdhome/internal/taskqueue"
	"sdhome/internal/webhook"
)

const taskQueueConcurrency = 10

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Environment)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	rdb := redisclient.New(cfg.Redis.Addr)
	defer rdb.Close()

	clk := clock.Real{}
	bc := broadcaster.NewLogging(logger)
	tracker := e2e.New(bc, clk, logger)
	sunTracker := sun.NewTracker(cfg.Automation.Latitude, cfg.Automation.Longitude, logger)
	ruleIdx := ruleindex.New(rdb, logger)

	clientID := fmt.Sprintf("%s-%d", cfg.Broker.ClientIDPrefix, time.Now().UnixNano())
	mqttClient := mqttclient.New(cfg.Broker.Host, cfg.Broker.Port, clientID, logger)
	if cfg.Broker.Enabled {
		if err := mqttclient.Connect(mqttClient); err != nil {
			return fmt.Errorf("connecting to broker: %w", err)
		}
	}

	pub := publisher.New(mqttClient, cfg.Broker.Enabled, cfg.Broker.BaseTopic, logger)
	webhookClient := webhook.New()

	engine, err := automation.New(ctx, db, db, db, ruleIdx, rdb, pub, webhookClient, bc, tracker, sunTracker, clk, logger)
	if err != nil {
		return fmt.Errorf("starting automation engine: %w", err)
	}

	taskQueueClient := taskqueue.NewClient(cfg.Redis.Addr)
	defer taskQueueClient.Close()
	taskServer := taskqueue.NewServer(cfg.Redis.Addr, taskQueueConcurrency, engine, logger)
	go func() {
		if err := taskServer.Run(); err != nil {
			logger.Error("task queue server stopped", zap.Error(err))
		}
	}()
	defer taskServer.Shutdown()

	mapr := mapper.New(cfg.Broker.BaseTopic, clk)
	projector := projection.New()
	signalsService := signals.New(mapr, projector, db, bc, taskQueueClient, tracker, clk, logger)

	pairingMachine := pairing.New(bc, clk, logger)
	ingestionWorker := ingestion.New(mqttClient, cfg.Broker.BaseTopic, cfg.Broker.Enabled, pairingMachine, signalsService, logger)

	stateSyncWorker := statesync.New(mqttClient, db, pub, bc, clk, cfg.Broker.BaseTopic, cfg.StateSync.PollIntervalSeconds, logger)

	sched := scheduler.New(logger)
	tickInterval, err := time.ParseDuration(cfg.Automation.TickInterval)
	if err != nil {
		tickInterval = 30 * time.Second
	}
	if _, err := sched.AddJob("automation-tick", fmt.Sprintf("@every %s", tickInterval), func() {
		engine.Tick(ctx)
	}); err != nil {
		return fmt.Errorf("scheduling automation tick: %w", err)
	}
	if _, err := sched.AddJob("sun-refresh", "0 0 5 * * *", func() {
		sunTracker.Refresh(clk.Now())
	}); err != nil {
		return fmt.Errorf("scheduling sun refresh: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	go ingestionWorker.Run(ctx)
	go stateSyncWorker.Run(ctx)
	go ingestion.PairingTicker(ctx, pairingMachine)

	logger.Info("sdhome core started")
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
