// Package coprocessor is an in-process verifiable computation service. It
// accepts jobs from the postproof keeper, fetches the referenced post,
// runs the guest program and hands the committed output back to the ledger.
// It produces no proofs; the ledger trusts it through the callback
// capability alone.
package coprocessor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/sha3"
	"golang.org/x/time/rate"

	"github.com/proofofpost/pop/x/postproof/guest"
	"github.com/proofofpost/pop/x/postproof/types"
)

const tracerName = "postproof/coprocessor"

var (
	ErrQueueFull      = errors.New("job queue is full")
	ErrUnknownImage   = errors.New("unknown program image")
	ErrDeadlinePast   = errors.New("job deadline already passed")
	ErrNotAttached    = errors.New("coprocessor is not attached to a ledger")
	ErrStopped        = errors.New("coprocessor is stopped")
	ErrAlreadyRunning = errors.New("coprocessor is already running")
)

// Program is a guest program the coprocessor can execute.
type Program func(publicInput, content []byte) guest.Output

// CallbackSink is the ledger side of result delivery. CurrentHeight must not
// block on the ledger's state lock: it is called while a request is being
// processed under that lock.
type CallbackSink interface {
	CurrentHeight() int64
	DeliverJobResult(ctx context.Context, capability *types.CallbackCapability, res types.JobResult) (types.JobOutput, error)
}

// Receipt describes one executed job.
type Receipt struct {
	WorkerID  string
	JobRef    sdk.AccAddress
	Output    guest.Output
	InputHash [32]byte
	Delivered bool
	Err       error
}

var _ types.Coprocessor = (*Coprocessor)(nil)

// Coprocessor runs postproof jobs on a pool of workers
type Coprocessor struct {
	cfg     Config
	logger  log.Logger
	client  *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	metrics *Metrics

	programs map[string]Program
	queue    chan types.Job

	mu         sync.RWMutex
	sink       CallbackSink
	capability *types.CallbackCapability
	onReceipt  func(Receipt)

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a coprocessor that knows the post verification program.
func New(cfg Config, logger log.Logger) (*Coprocessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coprocessor{
		cfg:     cfg,
		logger:  logger.With("module", "coprocessor"),
		client:  newFetchClient(cfg),
		limiter: rate.NewLimiter(rate.Limit(cfg.FetchRate), cfg.FetchBurst),
		tracer:  otel.Tracer(tracerName),
		metrics: NewMetrics(),
		programs: map[string]Program{
			guest.ImageID: guest.Verify,
		},
		queue: make(chan types.Job, cfg.QueueSize),
	}, nil
}

// OnReceipt registers fn to observe every executed job.
func (c *Coprocessor) OnReceipt(fn func(Receipt)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReceipt = fn
}

// Attach connects the coprocessor to the ledger that bound it.
func (c *Coprocessor) Attach(sink CallbackSink, capability *types.CallbackCapability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
	c.capability = capability
}

// FeeAddress implements types.Coprocessor
func (c *Coprocessor) FeeAddress() sdk.AccAddress {
	return c.cfg.FeeAddress
}

// SubmitJob implements types.Coprocessor. It never blocks: a full queue is
// reported to the caller, which rolls the request back.
func (c *Coprocessor) SubmitJob(_ context.Context, job types.Job) error {
	if _, ok := c.programs[job.ImageID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownImage, job.ImageID)
	}

	c.mu.RLock()
	sink, running := c.sink, c.running
	c.mu.RUnlock()
	if sink == nil {
		return ErrNotAttached
	}
	if !running {
		return ErrStopped
	}
	if height := sink.CurrentHeight(); job.Deadline <= height {
		return fmt.Errorf("%w: deadline %d, height %d", ErrDeadlinePast, job.Deadline, height)
	}

	select {
	case c.queue <- job:
		c.metrics.JobsQueued.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (c *Coprocessor) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true

	for i := 0; i < c.cfg.Workers; i++ {
		workerID := uuid.NewString()
		c.wg.Add(1)
		go c.worker(ctx, workerID)
	}
	c.logger.Info("coprocessor started", "workers", c.cfg.Workers, "image", guest.ImageID)
	return nil
}

// Stop halts the workers and waits for in-flight jobs. Queued jobs are
// abandoned; their logs stay pending until they expire on the ledger.
func (c *Coprocessor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("coprocessor stopped")
}

// Running reports whether workers are started.
func (c *Coprocessor) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// QueueDepth returns the number of queued jobs and the queue capacity.
func (c *Coprocessor) QueueDepth() (queued, capacity int) {
	return len(c.queue), cap(c.queue)
}

func (c *Coprocessor) worker(ctx context.Context, workerID string) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-c.queue:
			c.metrics.JobsQueued.Dec()
			c.execute(ctx, workerID, job)
		}
	}
}

// execute runs one job end to end. Failures before the program runs deliver
// nothing.
func (c *Coprocessor) execute(ctx context.Context, workerID string, job types.Job) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "coprocessor.execute",
		trace.WithAttributes(
			attribute.String("worker.id", workerID),
			attribute.String("job.ref", job.Ref.String()),
			attribute.String("job.request_id", job.RequestID),
			attribute.Int64("job.deadline", job.Deadline),
		),
	)
	defer span.End()

	c.mu.RLock()
	sink, capability, observe := c.sink, c.capability, c.onReceipt
	c.mu.RUnlock()

	receipt := Receipt{WorkerID: workerID, JobRef: job.Ref}
	defer func() {
		if observe != nil {
			observe(receipt)
		}
	}()

	if height := sink.CurrentHeight(); height > job.Deadline {
		c.metrics.JobsDropped.WithLabelValues("deadline").Inc()
		span.SetStatus(codes.Error, "deadline passed")
		receipt.Err = fmt.Errorf("%w: deadline %d, height %d", ErrDeadlinePast, job.Deadline, height)
		c.logger.Info("dropping expired job", "job", job.Ref.String(), "deadline", job.Deadline, "height", height)
		return
	}

	content, err := c.fetch(ctx, job.ContentURL)
	if err != nil {
		c.metrics.FetchFailures.WithLabelValues(fetchFailureReason(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		receipt.Err = err
		c.logger.Error("content fetch failed", "job", job.Ref.String(), "url", job.ContentURL, "error", err)
		return
	}

	out := c.programs[job.ImageID](job.PublicInput, content)
	receipt.Output = out
	receipt.InputHash = InputHash(job.PublicInput, content)
	c.metrics.JobsExecuted.WithLabelValues(verdictLabel(out)).Inc()
	span.SetAttributes(
		attribute.Int("job.verdict", int(out.Verdict)),
		attribute.String("job.input_hash", fmt.Sprintf("%x", receipt.InputHash)),
	)

	if _, err := sink.DeliverJobResult(ctx, capability, job.Result(out.Bytes())); err != nil {
		c.metrics.DeliveryFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery rejected")
		receipt.Err = err
		c.logger.Error("result delivery rejected", "job", job.Ref.String(), "error", err)
		return
	}
	receipt.Delivered = true
	c.metrics.ExecutionLatency.Observe(time.Since(start).Seconds())
	c.logger.Info("job executed", "job", job.Ref.String(), "worker", workerID, "verdict", out.Verdict,
		"input_hash", fmt.Sprintf("%x", receipt.InputHash))
}

// InputHash binds a public input to the content it was run against.
func InputHash(publicInput, content []byte) [32]byte {
	h := sha3.New256()
	h.Write(publicInput)
	h.Write(content)
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func verdictLabel(out guest.Output) string {
	if out.Verdict == 1 {
		return "verified"
	}
	return "rejected"
}
