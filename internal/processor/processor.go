package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"smokesignal/internal/config"
	"smokesignal/internal/engine"
	"smokesignal/internal/kafka"
	"smokesignal/internal/logger"
	"smokesignal/internal/models"
	"smokesignal/internal/sink"
)

// Processor is the high-level coordinator: it pulls raw payloads from the
// Kafka feed, runs each through the engine, and exposes metrics and
// health over HTTP. One event is fully processed before the next is
// admitted.
type Processor struct {
	cfg        *config.Config
	consumer   *kafka.Consumer
	engine     *engine.Engine
	httpServer *http.Server
	started    time.Time
}

// New constructs a Processor with given config.
func New(cfg *config.Config) *Processor {
	return &Processor{cfg: cfg}
}

// Run starts background goroutines and blocks until the context is
// cancelled or a component fails.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().Msg("processor starting")
	p.started = time.Now()

	if err := p.initEngine(); err != nil {
		log.Error().Err(err).Msg("failed to initialize engine")
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := p.initConsumer(); err != nil {
		log.Error().Err(err).Msg("failed to initialize consumer")
		return fmt.Errorf("failed to initialize consumer: %w", err)
	}
	defer p.consumer.Close()

	p.initHTTPServer()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.consumeLoop(ctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", p.cfg.HTTP.Addr).Msg("starting HTTP server")
		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("stopping HTTP server")
		return p.httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		p.reportStats(ctx)
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("processor stopped gracefully")
	return nil
}

// initEngine builds the alert engine and its sinks from config.
func (p *Processor) initEngine() error {
	log := logger.WithComponent("processor")

	eng, err := engine.New(engine.Config{
		WindowCapacity:    p.cfg.Engine.WindowCapacity,
		StallThreshold:    p.cfg.Engine.StallThreshold,
		MessageThreshold:  p.cfg.Engine.MessageThreshold,
		FrequentTimeFrame: p.cfg.Engine.FrequentTimeFrame,
		WatchAuthor:       p.cfg.Engine.WatchAuthor,
		WatchKeywords:     p.cfg.Engine.WatchKeywords,
		StreamKey:         p.cfg.Engine.StreamKey,
		RetentionMaxKeys:  p.cfg.Engine.RetentionMaxKeys,
		Sink:              sink.NewLogSink(),
	})
	if err != nil {
		return err
	}

	p.engine = eng
	log.Info().
		Int("window_capacity", p.cfg.Engine.WindowCapacity).
		Float64("stall_threshold", p.cfg.Engine.StallThreshold).
		Int("message_threshold", p.cfg.Engine.MessageThreshold).
		Str("watch_author", p.cfg.Engine.WatchAuthor).
		Msg("engine initialized")
	return nil
}

// initConsumer builds the Kafka consumer.
func (p *Processor) initConsumer() error {
	log := logger.WithComponent("processor")

	consumer, err := kafka.NewConsumer(
		p.cfg.Kafka.BrokerList(),
		p.cfg.Kafka.Topic,
		p.cfg.Kafka.GroupID,
	)
	if err != nil {
		return err
	}

	p.consumer = consumer
	log.Info().
		Strs("brokers", p.cfg.Kafka.BrokerList()).
		Str("topic", p.cfg.Kafka.Topic).
		Str("group_id", p.cfg.Kafka.GroupID).
		Msg("kafka consumer initialized")
	return nil
}

// initHTTPServer wires the metrics, health, and stats endpoints.
func (p *Processor) initHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", p.healthHandler)
	mux.HandleFunc("/stats", p.statsHandler)

	p.httpServer = &http.Server{
		Addr:         p.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// consumeLoop pulls one payload at a time and processes it. Decode
// failures drop the payload and continue; feed failures end the run.
func (p *Processor) consumeLoop(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().Str("topic", p.cfg.Kafka.Topic).Msg("polling messages")

	for {
		raw, err := p.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		if _, err := p.engine.Process(raw); err != nil {
			if errors.Is(err, models.ErrMalformedPayload) || errors.Is(err, models.ErrMissingField) {
				continue // dropped and counted by the engine
			}
			return fmt.Errorf("process: %w", err)
		}
	}
}

// reportStats periodically logs engine counters.
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.engine.Stats()
			log.Info().
				Uint64("processed", stats.Processed).
				Uint64("dropped", stats.Dropped).
				Uint64("alerts_emitted", stats.Emitted).
				Int("tracked_keys", stats.TrackedKeys).
				Msg("stats")
		}
	}
}

// healthHandler handles health check requests
func (p *Processor) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","uptime_seconds":%.0f}`, time.Since(p.started).Seconds())
}

// statsHandler returns current engine counters
func (p *Processor) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats := p.engine.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"processed": %d,
		"dropped": %d,
		"alerts_emitted": %d,
		"tracked_keys": %d
	}`,
		stats.Processed,
		stats.Dropped,
		stats.Emitted,
		stats.TrackedKeys,
	)
}
