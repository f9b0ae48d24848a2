package ingest

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/passagehq/passage/pkg/rag"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// PoolConfig is the configuration options for the ingestion worker pool.
type PoolConfig struct {
	// Orchestrator runs each queued ingestion.
	Orchestrator *Orchestrator

	// NumWorkers is the number of background workers in the pool. Size it
	// to the embedding backend's rate limit.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// OnResult, when set, receives every completed ingestion's result. It
	// is called from worker goroutines and must be safe for concurrent use.
	OnResult func(rag.IngestionResult)

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pool ingests documents asynchronously via a fixed set of workers. It
// decouples continuous sources, like a watched directory, from ingestion
// latency.
type Pool struct {
	config *PoolConfig
	queue  chan rag.IngestRequest
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a Pool and starts its worker goroutines.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Orchestrator == nil {
		return nil, fmt.Errorf("%w: orchestrator is required", rag.ErrConfiguration)
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan rag.IngestRequest, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a document for ingestion by the worker pool.
// Returns true if enqueued, false if the queue is full and the job dropped.
func (p *Pool) Enqueue(req rag.IngestRequest) bool {
	select {
	case p.queue <- req:
		p.logger.Debug("ingestion queued",
			zap.String("document_id", req.DocumentID),
			zap.String("filename", req.Filename),
		)
		return true
	default:
		p.logger.Error("ingestion not queued, queue full, job dropped",
			zap.String("document_id", req.DocumentID),
			zap.String("filename", req.Filename),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight ingestions to drain.
// Call this during graceful shutdown after the request sources have stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker continuously pulls requests off the queue and ingests them.
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("ingestion worker started", zap.Uint("worker_id", id))

	for req := range p.queue {
		result := p.config.Orchestrator.Ingest(context.Background(), req)
		if p.config.OnResult != nil {
			p.config.OnResult(result)
		}
	}

	p.logger.Debug("ingestion worker stopped", zap.Uint("worker_id", id))
}
