package main

import (
	"github.com/NamiraNet/voicepost/internal/generation"
	"github.com/NamiraNet/voicepost/internal/model"
	workerpool "github.com/NamiraNet/voicepost/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricsNamespace = "voicepost"

// stack is the pool, bridge and guarded generator both commands share.
type stack struct {
	pool   *workerpool.WorkerPool
	bridge *workerpool.Bridge
	guard  *generation.Guard
	posts  *generation.PostGenerator
	chat   *model.ChatClient
}

// newStack registers collectors on reg when it is non-nil.
func newStack(logger *zap.Logger, reg prometheus.Registerer) *stack {
	var poolMetrics, guardPoolMetrics *workerpool.Metrics
	var genMetrics *generation.Metrics
	if reg != nil {
		poolMetrics = workerpool.NewMetrics(reg, metricsNamespace, "pool")
		guardPoolMetrics = workerpool.NewMetrics(reg, metricsNamespace, "generation_pool")
		genMetrics = generation.NewMetrics(reg, metricsNamespace)
	}

	var poolOpts []workerpool.Option
	if poolMetrics != nil {
		poolOpts = append(poolOpts, workerpool.WithMetrics(poolMetrics))
	}
	pool := workerpool.NewWorkerPool(workerpool.WorkerPoolConfig{
		Name:              "main",
		WorkerCount:       cfg.Worker.Count,
		PollInterval:      cfg.Worker.PollInterval,
		MaxQueueDepth:     cfg.Worker.MaxQueueDepth,
		DefaultJobTimeout: cfg.Worker.JobTimeout,
	}, logger, poolOpts...)

	chat := model.NewChatClient(cfg.Models.LLMURL, cfg.Models.LLMModel,
		model.WithTimeout(cfg.Models.RequestTimeout),
		model.WithLogger(logger.Named("llm")))

	guard := generation.NewGuard(chat, logger.Named("generation"),
		generation.WithWorkers(cfg.Generation.Workers),
		generation.WithStats(generation.NewStats(genMetrics)),
		generation.WithPoolMetrics(guardPoolMetrics))

	return &stack{
		pool:   pool,
		bridge: workerpool.NewBridge(pool, cfg.Worker.BridgeTimeout, logger.Named("bridge")),
		guard:  guard,
		posts:  generation.NewPostGenerator(guard, logger.Named("posts")),
		chat:   chat,
	}
}

func (s *stack) generationConfig() generation.Config {
	c := generation.DefaultConfig()
	c.Timeout = cfg.Generation.Timeout
	return c
}

// close drains the main pool before the guard so queued drafts can still run.
func (s *stack) close() {
	s.pool.Shutdown()
	s.guard.Close()
}
