package indexer

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"evmswaps/internal/observability"
	"evmswaps/internal/source"
	"evmswaps/internal/swaps"
)

const defaultHeadRefresh = 10 * time.Second

// progress logs one line per batch with position, head, percent and rate.
type progress struct {
	source     source.Source
	metrics    *observability.Metrics
	logger     *zap.Logger
	startBlock uint64
	startedAt  time.Time
	current    uint64
	target     uint64
	fixed      bool
	refresh    time.Duration
	refreshed  time.Time
}

func newProgress(src source.Source, start, to uint64, refresh time.Duration, metrics *observability.Metrics, logger *zap.Logger) *progress {
	if refresh <= 0 {
		refresh = defaultHeadRefresh
	}
	metrics.CurrentBlock.Set(float64(start))
	if to > 0 {
		metrics.HeadBlock.Set(float64(to))
	}
	return &progress{
		source:     src,
		metrics:    metrics,
		logger:     logger,
		startBlock: start,
		startedAt:  time.Now(),
		current:    start,
		target:     to,
		fixed:      to > 0,
		refresh:    refresh,
	}
}

func (p *progress) report(ctx context.Context, current uint64, result swaps.Result) {
	p.current = current
	p.metrics.CurrentBlock.Set(float64(current))
	p.refreshHead(ctx)

	fields := []zap.Field{
		zap.Uint64("current", current),
		zap.Uint64("head", p.target),
		zap.String("percent", p.percent()),
		zap.Float64("blocks_per_sec", p.rate()),
		zap.Int("pools", len(result.Pools)),
		zap.Int("swaps", len(result.Swaps)),
		zap.Int("dropped", len(result.Drops)),
	}
	if result.EnrichErr != nil {
		fields = append(fields, zap.NamedError("enrich_error", result.EnrichErr))
	}
	p.logger.Info("batch complete", fields...)
}

func (p *progress) refreshHead(ctx context.Context) {
	if p.fixed {
		return
	}
	if !p.refreshed.IsZero() && time.Since(p.refreshed) < p.refresh && p.target >= p.current {
		return
	}
	head, err := p.source.Head(ctx)
	if err != nil {
		p.logger.Debug("head refresh failed", zap.Error(err))
		return
	}
	p.target = head
	p.refreshed = time.Now()
	p.metrics.HeadBlock.Set(float64(head))
}

func (p *progress) percent() string {
	if p.target <= p.startBlock {
		return "100.00"
	}
	done := float64(p.current-p.startBlock) / float64(p.target-p.startBlock) * 100
	if done > 100 {
		done = 100
	}
	return strconv.FormatFloat(done, 'f', 2, 64)
}

func (p *progress) rate() float64 {
	elapsed := time.Since(p.startedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.current-p.startBlock) / elapsed
}
