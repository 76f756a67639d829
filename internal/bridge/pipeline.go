// Package bridge runs the message pipelines between the gateway and the
// agent desk: identity resolution, conversation and session continuity,
// media relay, and the actual sends.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

type task struct {
	ctx   context.Context
	label string
	run   func(ctx context.Context) error
}

// Pipeline is the background worker pool webhook handlers hand parsed
// events to. Webhooks ack immediately, the pool does the slow work.
type Pipeline struct {
	queue   chan task
	workers int
	log     *slog.Logger

	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline builds an idle pool. Start brings the workers up.
func NewPipeline(workers, queueSize int, log *slog.Logger) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pipeline{
		queue:   make(chan task, queueSize),
		workers: workers,
		log:     log.With(slog.String("service", "bridge")),
	}
}

// Start launches the worker goroutines. Safe to call more than once.
func (p *Pipeline) Start(ctx context.Context) {
	p.once.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		p.ctx, p.cancel = context.WithCancel(ctx)
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.runWorker(p.ctx)
		}
	})
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Enqueue submits a task. The task keeps the request's values but not its
// cancellation, the webhook response must not abort the forward. A full
// queue rejects instead of blocking the webhook.
func (p *Pipeline) Enqueue(ctx context.Context, label string, run func(ctx context.Context) error) error {
	if p.ctx == nil || p.ctx.Err() != nil {
		return errors.New("pipeline stopped")
	}
	t := task{
		ctx:   context.WithoutCancel(ctx),
		label: label,
		run:   run,
	}
	select {
	case p.queue <- t:
		return nil
	default:
		p.log.Warn("pipeline queue full, dropping task", slog.String("label", label))
		return errors.New("pipeline queue full")
	}
}

func (p *Pipeline) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.queue:
			if err := t.run(t.ctx); err != nil {
				p.log.Error("pipeline task failed",
					slog.String("label", t.label),
					slog.Any("error", err))
			}
		}
	}
}
