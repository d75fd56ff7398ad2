package remanent

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/metrics"
	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

// DefaultInterval is the checkpoint period (spec §4.5).
const DefaultInterval = 60 * time.Second

// InstanceSource supplies the live snapshots to checkpoint. Scheduler
// satisfies this.
type InstanceSource interface {
	RemanentSnapshots() ([]*types.RemanentSnapshot, error)
}

// Store is the remanent store (component C5).
type Store struct {
	store    storage.ConfigStore
	source   InstanceSource
	interval time.Duration

	stopCh chan struct{}
	done   chan struct{}

	log zerolog.Logger
}

// Config bundles Store's collaborators.
type Config struct {
	Store    storage.ConfigStore
	Source   InstanceSource
	Interval time.Duration
}

// New creates a Store. Start must be called to begin periodic checkpoints.
func New(cfg Config) *Store {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Store{
		store:    cfg.Store,
		source:   cfg.Source,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		log:      log.WithComponent("remanent"),
	}
}

// Restore satisfies scheduler.RemanentSource.
func (s *Store) Restore(instanceID string) ([]byte, bool) {
	snap, err := s.store.GetRemanentSnapshot(instanceID)
	if err != nil || snap == nil {
		return nil, false
	}
	return snap.State, true
}

// Checkpoint writes every remanent instance's current state in one pass.
func (s *Store) Checkpoint() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CheckpointDuration)

	snaps, err := s.source.RemanentSnapshots()
	if err != nil {
		metrics.CheckpointFailuresTotal.Inc()
		metrics.UpdateComponent("storage", false, err.Error())
		return err
	}
	for _, snap := range snaps {
		if err := s.store.SaveRemanentSnapshot(snap); err != nil {
			metrics.CheckpointFailuresTotal.Inc()
			metrics.UpdateComponent("storage", false, err.Error())
			s.log.Error().Str("instance", snap.InstanceID).Err(err).Msg("checkpoint failed for instance")
			return err
		}
	}
	metrics.UpdateComponent("storage", true, "open")
	s.log.Debug().Int("count", len(snaps)).Msg("checkpoint complete")
	return nil
}

// Start launches the periodic checkpoint loop.
func (s *Store) Start() {
	go s.run()
}

// Stop halts the periodic loop and performs one final checkpoint, per the
// shutdown sequence: drain execution, then in-order checkpoint, then close
// persistence.
func (s *Store) Stop() {
	close(s.stopCh)
	<-s.done
	if err := s.Checkpoint(); err != nil {
		s.log.Error().Err(err).Msg("final checkpoint on shutdown failed")
	}
}

func (s *Store) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Checkpoint(); err != nil {
				s.log.Error().Err(err).Msg("periodic checkpoint failed")
			}
		case <-s.stopCh:
			return
		}
	}
}
