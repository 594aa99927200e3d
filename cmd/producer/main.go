// The replay producer reads temperature readings from a CSV file and
// publishes them to Kafka at a fixed interval, looping over the file
// until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smokesignal/internal/config"
	"smokesignal/internal/kafka"
	"smokesignal/internal/logger"
	"smokesignal/internal/replay"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	mainLog := logger.WithComponent("producer")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		mainLog.Info().Msg("shutting down")
		cancel()
	}()

	brokers := cfg.Kafka.BrokerList()
	if err := kafka.EnsureTopic(ctx, brokers, cfg.Kafka.Topic, 1, 1); err != nil {
		mainLog.Fatal().Err(err).Str("topic", cfg.Kafka.Topic).Msg("failed to ensure topic")
	}

	producer, err := kafka.NewProducer(brokers, cfg.Kafka.Topic, cfg.Kafka.Producer)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to create producer")
	}
	defer producer.Close()

	source, err := replay.Open(cfg.Replay.DataFile)
	if err != nil {
		mainLog.Fatal().Err(err).Str("path", cfg.Replay.DataFile).Msg("failed to open data file")
	}
	defer source.Close()

	mainLog.Info().
		Str("topic", cfg.Kafka.Topic).
		Dur("interval", cfg.Replay.Interval).
		Msg("starting message production")

	ticker := time.NewTicker(cfg.Replay.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stats := producer.Stats()
			mainLog.Info().
				Uint64("sent", stats.MessagesSent).
				Uint64("failed", stats.MessagesFailed).
				Uint64("bytes", stats.BytesWritten).
				Msg("producer stopped")
			return
		case <-ticker.C:
			payload, err := source.Next()
			if err != nil {
				mainLog.Error().Err(err).Msg("replay source failed")
				cancel()
				continue
			}
			if err := producer.Publish(ctx, cfg.Engine.StreamKey, payload); err != nil {
				mainLog.Error().Err(err).Msg("publish failed")
			}
		}
	}
}
