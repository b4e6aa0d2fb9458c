package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"evmswaps/internal/cursor"
	"evmswaps/internal/model"
	"evmswaps/internal/observability"
	"evmswaps/internal/source"
	"evmswaps/internal/storage"
	"evmswaps/internal/swaps"
)

// State is the runner lifecycle state.
type State int32

const (
	StateInit State = iota
	StateResuming
	StateStreaming
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateResuming:
		return "resuming"
	case StateStreaming:
		return "streaming"
	case StateDrained:
		return "drained"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Processor turns a batch into sink rows.
type Processor interface {
	Process(ctx context.Context, batch model.Batch) (swaps.Result, error)
}

// RunConfig holds runtime settings for the runner.
type RunConfig struct {
	StreamID string
	// FromBlock is the first block of a stream without a checkpoint.
	FromBlock uint64
	// ToBlock is the last block to process; zero follows the chain head.
	ToBlock       uint64
	Filters       []model.LogFilter
	ProgressEvery time.Duration
}

// Runner drives one stream: resume, process, write, checkpoint, ack.
type Runner struct {
	cfg     RunConfig
	source  source.Source
	cursor  cursor.Store
	engine  Processor
	sink    storage.Sink
	metrics *observability.Metrics
	logger  *zap.Logger
	state   atomic.Int32
}

// NewRunner builds a Runner with its dependencies. sink may be nil when
// the processor produces no rows, as in pools-only mode.
func NewRunner(
	cfg RunConfig,
	src source.Source,
	cursorStore cursor.Store,
	engine Processor,
	sink storage.Sink,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &Runner{
		cfg:     cfg,
		source:  src,
		cursor:  cursorStore,
		engine:  engine,
		sink:    sink,
		metrics: metrics,
		logger:  logger.With(zap.String("stream_id", cfg.StreamID)),
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
	r.logger.Debug("runner state", zap.Stringer("state", s))
}

// DefaultPosition is the checkpoint of a stream that has not processed
// anything yet: the block before FromBlock.
func DefaultPosition(fromBlock uint64) model.Position {
	if fromBlock == 0 {
		return model.Position{}
	}
	return model.Position{Number: fromBlock - 1}
}

// Run executes the indexing loop until the stream drains or ctx ends. The
// checkpoint only advances after the batch is written to the sink.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("source is nil")
	}
	if r.cursor == nil {
		return fmt.Errorf("cursor store is nil")
	}
	if r.engine == nil {
		return fmt.Errorf("processor is nil")
	}
	if r.cfg.StreamID == "" {
		return fmt.Errorf("stream id is required")
	}

	r.setState(StateResuming)
	cp, err := cursor.Resolve(ctx, r.cursor, r.cfg.StreamID, DefaultPosition(r.cfg.FromBlock))
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	if cp.Fresh() {
		r.logger.Info("syncing from", zap.Uint64("block_number", cp.Current.Number+1))
	} else {
		r.logger.Info("resuming from",
			zap.Uint64("block_number", cp.Current.Number+1),
			zap.Uint64("initial", cp.Initial.Number),
		)
	}

	if r.sink != nil {
		if err := r.sink.CleanupAfter(ctx, cp.Current.Number); err != nil {
			return fmt.Errorf("sink cleanup after %d: %w", cp.Current.Number, err)
		}
	}

	if r.cfg.ToBlock > 0 && cp.Current.Number >= r.cfg.ToBlock {
		r.setState(StateDrained)
		r.logger.Info("nothing to sync", zap.Uint64("current", cp.Current.Number), zap.Uint64("to", r.cfg.ToBlock))
		return nil
	}

	stream, err := r.source.Open(ctx, r.cfg.Filters, cp.Current, r.cfg.ToBlock)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}

	progress := newProgress(r.source, cp.Current.Number, r.cfg.ToBlock, r.cfg.ProgressEvery, r.metrics, r.logger)
	r.setState(StateStreaming)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			r.setState(StateDrained)
			r.logger.Info("stream drained", zap.Uint64("current", progress.current))
			return nil
		}
		if err != nil {
			return fmt.Errorf("next batch: %w", err)
		}

		if err := r.handle(ctx, stream, batch, cp.Initial, progress); err != nil {
			return err
		}
	}
}

func (r *Runner) handle(ctx context.Context, stream source.Stream, batch model.Batch, initial model.Position, progress *progress) error {
	timer := time.Now()

	result, err := r.engine.Process(ctx, batch)
	if err != nil {
		return fmt.Errorf("process batch ending %s: %w", batch.Position, err)
	}

	if r.sink != nil {
		if err := r.sink.Write(ctx, result.Swaps); err != nil {
			return fmt.Errorf("write batch ending %s: %w", batch.Position, err)
		}
	}
	if err := r.cursor.Save(ctx, r.cfg.StreamID, batch.Position, initial); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", batch.Position, err)
	}
	if err := stream.Ack(batch.Position); err != nil {
		return fmt.Errorf("ack %s: %w", batch.Position, err)
	}

	r.metrics.BatchDuration.Observe(time.Since(timer).Seconds())
	progress.report(ctx, batch.Position.Number, result)
	return nil
}
