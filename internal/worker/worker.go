// Package worker scores requests that arrive on the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/churnguard/internal/domain"
	"github.com/opensource-finance/churnguard/internal/metrics"
	"github.com/opensource-finance/churnguard/internal/model"
	"github.com/opensource-finance/churnguard/internal/scoring"
)

// Reloader rebinds the served model from its artifact.
type Reloader interface {
	Reload() (*model.Model, error)
	Loaded() bool
}

// Worker consumes TopicScoreRequest, scores each request through the
// processor and answers on TopicScoreResult. It also follows model reload
// announcements from other instances.
type Worker struct {
	bus        domain.EventBus
	processor  *scoring.Processor
	reloader   Reloader
	metrics    *metrics.Metrics
	instanceID string

	jobs          chan *domain.Message
	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// WorkerCount is the number of concurrent scoring goroutines.
	WorkerCount int

	// QueueSize bounds requests waiting for a free goroutine.
	QueueSize int

	// InstanceID identifies this process in reload announcements.
	InstanceID string

	// Metrics records reloads triggered by announcements. May be nil.
	Metrics *metrics.Metrics
}

// NewWorker creates a new async worker. reloader may be nil.
func NewWorker(bus domain.EventBus, processor *scoring.Processor, reloader Reloader) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		processor: processor,
		reloader:  reloader,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the scoring topics and launches the pool.
func (w *Worker) Start(cfg Config) error {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.WorkerCount * 64
	}
	w.instanceID = cfg.InstanceID
	w.metrics = cfg.Metrics
	w.jobs = make(chan *domain.Message, cfg.QueueSize)

	for i := 0; i < cfg.WorkerCount; i++ {
		w.wg.Add(1)
		go w.run()
	}

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicScoreRequest, w.enqueue)
	if err != nil {
		w.cancel()
		w.wg.Wait()
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	if w.reloader != nil {
		sub, err := w.bus.Subscribe(w.ctx, domain.TopicModelReloaded, w.handleReload)
		if err != nil {
			slog.Error("failed to subscribe to model reloads", "error", err)
		} else {
			w.subscriptions = append(w.subscriptions, sub)
		}
	}

	slog.Info("workers started",
		"worker_count", cfg.WorkerCount,
		"topic", domain.TopicScoreRequest,
	)
	return nil
}

func (w *Worker) enqueue(ctx context.Context, msg *domain.Message) error {
	select {
	case w.jobs <- msg:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case msg := <-w.jobs:
			if err := w.processRequest(w.ctx, msg); err != nil {
				slog.Error("score request failed", "message_id", msg.ID, "error", err)
			}
		}
	}
}

// processRequest scores one request and always answers on the result topic
// unless the payload cannot be decoded at all.
func (w *Worker) processRequest(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req domain.ScoreRequestMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse score request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = msg.ID
	}

	reply := domain.ScoreResultMessage{
		CorrelationID: correlationID,
		CustomerID:    req.CustomerID,
	}

	pred, err := w.processor.Process(ctx, req.Request, correlationID)
	if err != nil {
		reply.Error = err.Error()
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			reply.ErrorField = verr.Field
		}
	} else {
		reply.Result = &pred.Result
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		return err
	}
	if err := w.bus.Publish(ctx, domain.TopicScoreResult, payload); err != nil {
		return err
	}

	slog.Info("score request processed",
		"correlation_id", correlationID,
		"customer_id", req.CustomerID,
		"ok", reply.Error == "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) handleReload(ctx context.Context, msg *domain.Message) error {
	var event domain.ModelReloadedMessage
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return err
	}
	if event.InstanceID != "" && event.InstanceID == w.instanceID {
		return nil
	}

	m, err := w.reloader.Reload()
	w.metrics.ObserveReload(err == nil)
	w.metrics.SetModelLoaded(w.reloader.Loaded())
	if err != nil {
		return err
	}
	slog.Info("model reloaded from announcement",
		"origin", event.InstanceID,
		"version", m.Artifact.Version,
	)
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	Queued            int      `json:"queued"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Queued:            len(w.jobs),
	}
}
