// Copyright (C) 2025 Caldera Health (engineering@calderahealth.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package embeddings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/calderahealth/intake/services/interview/bank"
	"github.com/calderahealth/intake/services/interview/observability"
)

// indexJob is one answer queued for embedding and indexing.
type indexJob struct {
	sessionID string
	question  *bank.Question
	answer    string
	queuedAt  time.Time
}

// IndexerConfig configures the asynchronous answer indexer.
type IndexerConfig struct {
	// Client is the Weaviate client. Required.
	Client *weaviate.Client

	// Provider embeds answer text. Required.
	Provider EmbeddingProvider

	// QueueSize bounds the pending-job queue. When the queue is full,
	// new jobs are dropped with a warning rather than blocking the
	// interview turn. Default: 256.
	QueueSize int

	// Timeout bounds a single embed-and-index round trip.
	// Default: 15 seconds.
	Timeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to observability.Default().
	Metrics *observability.InterviewMetrics
}

// Indexer embeds recorded answers and writes them to the Answer class
// in Weaviate. It satisfies the engine's answer sink contract: Submit
// never blocks and never returns an error, since indexing is strictly
// downstream of the interview itself.
//
// # Thread Safety
//
// Submit is safe for concurrent use. A single worker goroutine drains
// the queue, so writes to Weaviate are serialized.
type Indexer struct {
	client   *weaviate.Client
	provider EmbeddingProvider
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.InterviewMetrics

	jobs      chan indexJob
	done      chan struct{}
	closeOnce sync.Once
}

// NewIndexer starts the indexer's worker goroutine.
// Call Close during shutdown to drain the queue.
func NewIndexer(cfg IndexerConfig) *Indexer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.Default()
	}
	idx := &Indexer{
		client:   cfg.Client,
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		jobs:     make(chan indexJob, cfg.QueueSize),
		done:     make(chan struct{}),
	}
	go idx.worker()
	return idx
}

// Submit queues an answer for indexing. It never blocks: when the queue
// is full the job is dropped and counted, and the interview proceeds
// unaffected.
func (idx *Indexer) Submit(sessionID string, question *bank.Question, answer string) {
	job := indexJob{
		sessionID: sessionID,
		question:  question,
		answer:    answer,
		queuedAt:  time.Now(),
	}
	select {
	case idx.jobs <- job:
	default:
		idx.metrics.EmbeddingIndexTotal.WithLabelValues("dropped").Inc()
		idx.logger.Warn("answer index queue full, dropping job",
			"sessionId", sessionID,
			"label", question.Label)
	}
}

// Close stops accepting jobs and drains the queue. Jobs submitted after
// Close are dropped.
func (idx *Indexer) Close() {
	idx.closeOnce.Do(func() {
		close(idx.jobs)
		<-idx.done
	})
}

func (idx *Indexer) worker() {
	defer close(idx.done)
	for job := range idx.jobs {
		idx.index(job)
	}
}

func (idx *Indexer) index(job indexJob) {
	ctx, cancel := context.WithTimeout(context.Background(), idx.timeout)
	defer cancel()

	vector, err := idx.provider.Embed(ctx, job.answer)
	if err != nil {
		idx.metrics.EmbeddingIndexTotal.WithLabelValues("failed").Inc()
		idx.logger.Warn("failed to embed answer",
			"sessionId", job.sessionID,
			"label", job.question.Label,
			"error", err)
		return
	}

	properties := map[string]interface{}{
		"session_id":  job.sessionID,
		"label":       job.question.Label,
		"category":    job.question.Category,
		"subcategory": job.question.Subcategory,
		"question":    job.question.Text,
		"answer":      job.answer,
		"timestamp":   float64(job.queuedAt.UnixMilli()),
	}

	_, err = idx.client.Data().Creator().
		WithClassName(AnswerClassName).
		WithProperties(properties).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		idx.metrics.EmbeddingIndexTotal.WithLabelValues("failed").Inc()
		idx.logger.Warn("failed to index answer in Weaviate",
			"sessionId", job.sessionID,
			"label", job.question.Label,
			"error", err)
		return
	}

	idx.metrics.EmbeddingIndexTotal.WithLabelValues("indexed").Inc()
	idx.logger.Debug("indexed answer",
		"sessionId", job.sessionID,
		"label", job.question.Label)
}

// NopIndexer discards every submitted answer. Used when the service
// runs in lightweight mode without Weaviate.
type NopIndexer struct{}

// Submit discards the job.
func (NopIndexer) Submit(string, *bank.Question, string) {}
