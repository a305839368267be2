package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/pdf-rag/internal/audit"
	"github.com/suPer8Hu/pdf-rag/internal/config"
	"github.com/suPer8Hu/pdf-rag/internal/db"
	"github.com/suPer8Hu/pdf-rag/internal/events"
	"github.com/suPer8Hu/pdf-rag/internal/events/natsbus"
	"github.com/suPer8Hu/pdf-rag/internal/events/rabbitmq"
	"github.com/suPer8Hu/pdf-rag/internal/logger"
)

const (
	module     = "worker"
	maxRetries = 3
	retryDelay = 5 * time.Second
	durable    = "pdfrag-audit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logger.New(cfg.LogFilePath, cfg.IsProduction())
	defer func() { _ = lg.Sync() }()

	gdb, err := db.Open(cfg.DBDSN, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	repo := audit.NewRepo(gdb)
	if err := repo.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := &handler{repo: repo, log: lg}

	switch cfg.EventsBackend {
	case "nats":
		err = runNATS(ctx, cfg, h, lg)
	default:
		err = runRabbit(ctx, cfg, h, lg)
	}
	if err != nil {
		lg.Error(module, "worker stopped", map[string]any{"error": err})
		os.Exit(1)
	}
}

func runNATS(ctx context.Context, cfg config.Config, h *handler, lg *logger.Logger) error {
	bus, err := natsbus.Connect(ctx, cfg.NatsURL)
	if err != nil {
		return err
	}
	defer bus.Close()

	stopConsume, err := bus.Subscribe(ctx, events.TypeDocumentIngested, durable, h.handle, func(err error) {
		lg.Warn(module, "event failed", map[string]any{"error": err})
	})
	if err != nil {
		return err
	}
	defer stopConsume()

	lg.Info(module, "worker started", map[string]any{"backend": "nats", "url": cfg.NatsURL})
	<-ctx.Done()
	lg.Info(module, "worker shutting down", nil)
	return nil
}

func runRabbit(ctx context.Context, cfg config.Config, h *handler, lg *logger.Logger) error {
	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		return err
	}

	//  strict concurrency control
	concurrency := clampConcurrency(cfg.WorkerConcurrency)

	if err := ch.Qos(concurrency, 0, false); err != nil {
		return err
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	lg.Info(module, "worker started", map[string]any{
		"backend":     "rabbitmq",
		"queue":       cfg.RabbitQueue,
		"concurrency": concurrency,
	})

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := range concurrency {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				deliver(ctx, ch, cfg.RabbitQueue, d, h, lg, workerID)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			lg.Info(module, "worker shutting down", nil)
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-msgs:
			if !ok {
				close(jobs)
				wg.Wait()
				return amqp.ErrClosed
			}
			jobs <- d
		}
	}
}

// deliver handles one delivery. Malformed bodies go straight to the DLQ;
// handler failures go through the retry queue until maxRetries.
func deliver(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery, h *handler, lg *logger.Logger, workerID int) {
	e, err := decode(d.Body)
	if err != nil {
		lg.Warn(module, "bad message", map[string]any{"worker": workerID, "error": err})
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := h.handle(ctx, e); err != nil {
		attempt := rabbitmq.RetryCount(d)
		lg.Warn(module, "event failed", map[string]any{
			"worker":    workerID,
			"namespace": e.Namespace,
			"attempt":   attempt,
			"cost":      time.Since(start).String(),
			"error":     err,
		})
		if attempt >= maxRetries {
			_ = d.Nack(false, false)
			return
		}
		if err := rabbitmq.Retry(ctx, ch, queue, d, retryDelay); err != nil {
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		return
	}

	if err := d.Ack(false); err != nil {
		lg.Warn(module, "ack failed", map[string]any{"worker": workerID, "namespace": e.Namespace, "error": err})
	}
}
