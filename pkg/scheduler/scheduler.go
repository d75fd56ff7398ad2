package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightwire/knxlogic/pkg/binding"
	"github.com/brightwire/knxlogic/pkg/broadcast"
	"github.com/brightwire/knxlogic/pkg/bus"
	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/metrics"
	"github.com/brightwire/knxlogic/pkg/registry"
	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

const (
	// DefaultSoftTimeout is the default per-execute warning threshold.
	DefaultSoftTimeout = 5 * time.Second
	// failureWindow is the sliding window auto-disable is evaluated over.
	failureWindow = time.Minute
	// maxConsecutiveFailures triggers auto-disable within failureWindow.
	maxConsecutiveFailures = 3
	// periodicGranularity is how often the scheduler checks periodic types.
	periodicGranularity = 200 * time.Millisecond
	// debugRingSize bounds the per-instance debug ring.
	debugRingSize = 32
)

// RemanentSource supplies a previously checkpointed state blob for an
// instance at load time. pkg/remanent.Store satisfies this.
type RemanentSource interface {
	Restore(instanceID string) ([]byte, bool)
}

// IOWorkerPool hands off blocking work for a protocol-adaptor block.
// pkg/ioworker.Pool satisfies this.
type IOWorkerPool interface {
	Submit(fn func()) bool
}

// Gateway routes a block's output write to an external KNX group address
// via the outbound driver, or straight to the bus for an internal one.
// pkg/gateway.Gateway satisfies this. May be left nil, in which case
// SetOutput falls back to writing the bus directly (every address behaves
// as internal).
type Gateway interface {
	Send(address string, value types.Value, origin types.Origin) error
}

type job func(s *Scheduler)

type cmdResult struct {
	val interface{}
	err error
}

// Scheduler is the execution scheduler (component C4).
type Scheduler struct {
	reg      *registry.Registry
	bindings *binding.Table
	bus      *bus.Bus
	gateway  Gateway
	store    storage.ConfigStore
	remanent RemanentSource
	ioPool   IOWorkerPool

	softTimeout time.Duration

	jobCh  chan job
	stopCh chan struct{}
	done   chan struct{}

	// The following fields are touched only by the run() goroutine.
	instances        map[string]*types.BlockInstance
	states           map[string]types.InstanceState
	runQueue         []string
	pendingSet       map[string]bool
	coalesced        map[string]bool
	executing        string
	lastTrigger      map[string]string
	lastPeriodicRun  map[string]time.Time
	debugRings       map[string][]debugEntry

	log zerolog.Logger
}

type debugEntry struct {
	At    time.Time
	Key   string
	Value interface{}
}

// Config bundles the collaborators a Scheduler is wired to.
type Config struct {
	Registry    *registry.Registry
	Bindings    *binding.Table
	Bus         *bus.Bus
	Gateway     Gateway
	Broadcaster *broadcast.Broadcaster
	Store       storage.ConfigStore
	Remanent    RemanentSource
	IOPool      IOWorkerPool
	SoftTimeout time.Duration
}

// New creates a Scheduler. Start must be called before any other method.
func New(cfg Config) *Scheduler {
	softTimeout := cfg.SoftTimeout
	if softTimeout <= 0 {
		softTimeout = DefaultSoftTimeout
	}

	s := &Scheduler{
		reg:             cfg.Registry,
		bindings:        cfg.Bindings,
		bus:             cfg.Bus,
		gateway:         cfg.Gateway,
		store:           cfg.Store,
		remanent:        cfg.Remanent,
		ioPool:          cfg.IOPool,
		softTimeout:     softTimeout,
		jobCh:           make(chan job, 1024),
		stopCh:          make(chan struct{}),
		done:            make(chan struct{}),
		instances:       make(map[string]*types.BlockInstance),
		states:          make(map[string]types.InstanceState),
		pendingSet:      make(map[string]bool),
		coalesced:       make(map[string]bool),
		lastTrigger:     make(map[string]string),
		lastPeriodicRun: make(map[string]time.Time),
		debugRings:      make(map[string][]debugEntry),
		log:             log.WithComponent("scheduler"),
	}

	if cfg.Broadcaster != nil {
		sub := cfg.Broadcaster.Subscribe()
		go func() {
			for tg := range sub {
				tgCopy := tg
				select {
				case s.jobCh <- func(sc *Scheduler) { sc.handleTelegram(tgCopy) }:
				case <-s.stopCh:
					return
				}
			}
		}()
	}

	return s
}

// SetBindings wires the binding table after construction, for the common
// case where the binding table itself needs the Scheduler (as a
// binding.InstanceLookup) to be built first. Must be called before Start.
func (s *Scheduler) SetBindings(tbl *binding.Table) {
	s.bindings = tbl
}

// SetRemanentSource wires the remanent store after construction, mirroring
// SetBindings: pkg/remanent.Store needs the Scheduler as its InstanceSource,
// so it can only be built after the Scheduler exists. Must be called
// before any instance is loaded.
func (s *Scheduler) SetRemanentSource(src RemanentSource) {
	s.remanent = src
}

// Start launches the run loop. Safe to call once.
func (s *Scheduler) Start() {
	go s.run()
	go s.periodicLoop()
}

// Stop drains the current execution, checkpoints are the caller's
// responsibility (pkg/remanent.Stop), then halts the run loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.done
}

func (s *Scheduler) periodicLoop() {
	ticker := time.NewTicker(periodicGranularity)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			nowCopy := now
			select {
			case s.jobCh <- func(sc *Scheduler) { sc.checkPeriodic(nowCopy) }:
			case <-s.stopCh:
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		select {
		case j := <-s.jobCh:
			j(s)
		case <-s.stopCh:
			s.drainAvailable()
			return
		}
		s.drainAvailable()
		s.drainRunQueue()
	}
}

// drainAvailable processes every job currently sitting in the channel
// without blocking, so a burst of telegrams collapses into one queue pass
// before any instance actually executes.
func (s *Scheduler) drainAvailable() {
	for {
		select {
		case j := <-s.jobCh:
			j(s)
		default:
			return
		}
	}
}

// exec hands fn to the run goroutine and blocks for its result. Every
// public, state-touching method on Scheduler goes through this so the
// instance table is never accessed from more than one goroutine.
func (s *Scheduler) exec(fn func() (interface{}, error)) (interface{}, error) {
	done := make(chan cmdResult, 1)
	select {
	case s.jobCh <- func(sc *Scheduler) {
		val, err := fn()
		done <- cmdResult{val, err}
	}:
	case <-s.stopCh:
		return nil, types.NewError(types.KindIOFailure, "scheduler stopped")
	}
	res := <-done
	return res.val, res.err
}

// postToInstance safely applies fn to instanceID's live record from any
// goroutine by routing through the run goroutine's job channel. Used by
// execContext.PostOutput/PostState so a protocol-adaptor block's I/O
// worker job can deliver a result without touching scheduler state itself.
// Silently does nothing if the instance was deleted or the scheduler has
// stopped before the job is processed.
func (s *Scheduler) postToInstance(instanceID string, fn func(inst *types.BlockInstance)) {
	select {
	case s.jobCh <- func(sc *Scheduler) {
		if inst, ok := sc.instances[instanceID]; ok {
			fn(inst)
		}
	}:
	case <-s.stopCh:
	}
}

// writeOutput delivers a block's output value to address, routing through
// the gateway (so an external KNX group address actually reaches the
// driver) when one is configured, or writing the bus directly otherwise.
func (s *Scheduler) writeOutput(address string, v types.Value) error {
	if s.gateway != nil {
		return s.gateway.Send(address, v, types.OriginBlockOut)
	}
	return s.bus.Write(address, v, types.OriginBlockOut)
}

// scheduleRun enqueues instanceID for execution, or coalesces into the
// current/queued run if one is already pending.
func (s *Scheduler) scheduleRun(instanceID, reason string) {
	s.lastTrigger[instanceID] = reason
	if s.executing == instanceID {
		s.coalesced[instanceID] = true
		return
	}
	if s.pendingSet[instanceID] {
		return
	}
	s.pendingSet[instanceID] = true
	s.runQueue = append(s.runQueue, instanceID)
}

func (s *Scheduler) drainRunQueue() {
	for len(s.runQueue) > 0 {
		id := s.runQueue[0]
		s.runQueue = s.runQueue[1:]
		s.pendingSet[id] = false
		s.executing = id

		s.executeInstance(id)

		s.executing = ""
		if s.coalesced[id] {
			s.coalesced[id] = false
			s.scheduleRun(id, s.lastTrigger[id])
		}
	}
}

func (s *Scheduler) handleTelegram(tg *types.Telegram) {
	for _, b := range s.bindings.SubscribersOf(tg.Address) {
		inst, ok := s.instances[b.Instance]
		if !ok || inst.Unloadable || !inst.Enabled {
			continue
		}
		bt, err := s.reg.Resolve(inst.TypeKey)
		if err != nil {
			continue
		}
		schema := bt.Inputs[b.Port]
		newVal := types.CoerceTo(tg.NewValue, schema.Type)
		old := inst.Inputs[b.Port]
		changed := !types.ValuesEqual(old, newVal)
		inst.Inputs[b.Port] = newVal
		if changed {
			s.scheduleRun(inst.ID, b.Port)
		}
	}
}

func (s *Scheduler) checkPeriodic(now time.Time) {
	for id, inst := range s.instances {
		if inst.Unloadable || !inst.Enabled {
			continue
		}
		bt, err := s.reg.Resolve(inst.TypeKey)
		if err != nil || !bt.Periodic {
			continue
		}
		last, ok := s.lastPeriodicRun[id]
		if ok && now.Sub(last) < bt.Interval {
			continue
		}
		s.lastPeriodicRun[id] = now
		s.scheduleRun(id, string(types.TriggerPeriodic))
	}
}

// executeInstance runs one block instance's Execute body. Called only from
// the run goroutine.
func (s *Scheduler) executeInstance(id string) {
	inst, ok := s.instances[id]
	if !ok || inst.Unloadable || !inst.Enabled {
		return
	}
	bt, err := s.reg.Resolve(inst.TypeKey)
	if err != nil {
		return
	}

	s.states[id] = types.StateExecuting
	ctx := &execContext{s: s, inst: inst, triggeredBy: s.lastTrigger[id]}

	timer := metrics.NewTimer()
	start := time.Now()
	execErr := s.runBody(bt, ctx)
	elapsed := time.Since(start)
	timer.ObserveDuration(metrics.ExecutionLatency)

	if elapsed > s.softTimeout {
		metrics.ExecutionTimeoutsTotal.Inc()
		s.log.Warn().Str("instance", id).Dur("elapsed", elapsed).Msg("execute exceeded soft timeout")
	}

	if execErr != nil {
		inst.LastError = execErr.Error()
		metrics.InstanceFailuresTotal.WithLabelValues(inst.TypeKey).Inc()
		s.log.Error().Str("instance", id).Str("triggered_by", ctx.triggeredBy).Err(execErr).Msg("block execution failed")
		s.recordFailure(inst)
	} else {
		inst.LastError = ""
		inst.FailureWindow = nil
	}

	s.states[id] = types.StateReady
}

func (s *Scheduler) runBody(bt *types.BlockType, ctx *execContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("block panic: %v", r)
		}
	}()
	return bt.Body(ctx)
}

func (s *Scheduler) recordFailure(inst *types.BlockInstance) {
	now := time.Now()
	inst.FailureWindow = append(inst.FailureWindow, now)

	cutoff := now.Add(-failureWindow)
	kept := inst.FailureWindow[:0]
	for _, t := range inst.FailureWindow {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	inst.FailureWindow = kept

	if len(inst.FailureWindow) >= maxConsecutiveFailures {
		inst.Enabled = false
		s.states[inst.ID] = types.StateDisabled
		metrics.InstancesDisabledTotal.Inc()
		s.log.Warn().Str("instance", inst.ID).Msg("instance auto-disabled after repeated failures")
	}
}
