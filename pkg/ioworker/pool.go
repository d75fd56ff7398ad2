package ioworker

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/metrics"
)

// DefaultWorkers is used when Config.Workers is zero.
const DefaultWorkers = 4

// DefaultQueueSize is used when Config.QueueSize is zero.
const DefaultQueueSize = 256

// Config bundles the pool's size knobs.
type Config struct {
	Workers   int
	QueueSize int
}

// Pool is a bounded goroutine pool. It satisfies scheduler.IOWorkerPool.
type Pool struct {
	queue chan func()

	wg     sync.WaitGroup
	stopCh chan struct{}

	log zerolog.Logger
}

// New creates and starts a Pool. Call Stop to drain and release workers.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	p := &Pool{
		queue:  make(chan func(), queueSize),
		stopCh: make(chan struct{}),
		log:    log.WithComponent("ioworker"),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.runWorker()
	}

	return p
}

func (p *Pool) runWorker() {
	defer p.wg.Done()
	for {
		select {
		case fn := <-p.queue:
			p.runJob(fn)
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) runJob(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("ioworker job panicked")
		}
		metrics.IOWorkerQueueDepth.Set(float64(len(p.queue)))
	}()
	fn()
}

// Submit enqueues fn for execution on a worker goroutine. It returns false
// without running fn if the queue is full.
func (p *Pool) Submit(fn func()) bool {
	select {
	case p.queue <- fn:
		metrics.IOWorkerQueueDepth.Set(float64(len(p.queue)))
		return true
	default:
		metrics.IOWorkerDroppedTotal.Inc()
		p.log.Warn().Msg("ioworker queue full, dropping submission")
		return false
	}
}

// Stop signals every worker to exit and waits for in-flight jobs to finish.
// Queued-but-not-started jobs are abandoned.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}
