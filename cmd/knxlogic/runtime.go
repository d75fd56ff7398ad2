package main

import (
	"fmt"

	"github.com/brightwire/knxlogic/pkg/binding"
	"github.com/brightwire/knxlogic/pkg/broadcast"
	"github.com/brightwire/knxlogic/pkg/bus"
	"github.com/brightwire/knxlogic/pkg/config"
	"github.com/brightwire/knxlogic/pkg/gateway"
	"github.com/brightwire/knxlogic/pkg/ioworker"
	"github.com/brightwire/knxlogic/pkg/knxdriver"
	"github.com/brightwire/knxlogic/pkg/metrics"
	"github.com/brightwire/knxlogic/pkg/registry"
	"github.com/brightwire/knxlogic/pkg/remanent"
	"github.com/brightwire/knxlogic/pkg/scheduler"
	"github.com/brightwire/knxlogic/pkg/storage"
)

// runtime bundles every wired component a running daemon (or a one-shot CLI
// command acting on a live instance table) needs.
type runtime struct {
	cfg       *config.Config
	addrStore *storage.SQLiteAddressStore
	cfgStore  *storage.BoltConfigStore
	bcast     *broadcast.Broadcaster
	bus       *bus.Bus
	reg       *registry.Registry
	pool      *ioworker.Pool
	sched     *scheduler.Scheduler
	bindings  *binding.Table
	remanent  *remanent.Store
	gw        *gateway.Gateway
	driver    knxdriver.Driver
	collector *metrics.Collector
}

// bootstrap wires every component per cfg, restores persisted instances and
// bindings, and starts the scheduler and remanent checkpoint loop. Callers
// must call shutdown when done.
func bootstrap(cfg *config.Config) (*runtime, error) {
	addrStore, err := storage.NewSQLiteAddressStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open address store: %w", err)
	}
	cfgStore, err := storage.NewBoltConfigStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}

	bc := broadcast.New(broadcast.MinRingSize)
	b := bus.New(addrStore, bc)
	reg := registry.New()

	if cfg.CustomBlocksDir != "" {
		if err := reg.LoadFromPath(cfg.CustomBlocksDir); err != nil {
			return nil, fmt.Errorf("load custom blocks: %w", err)
		}
	}

	pool := ioworker.New(ioworker.Config{Workers: cfg.IOWorkers, QueueSize: cfg.IOQueueSize})

	var driver knxdriver.Driver
	if cfg.KNX.Driver == "simulate" {
		driver = knxdriver.NewSimulator(64)
	}
	gw := gateway.New(b, driver)
	go gw.PumpInbound()

	rt := &runtime{cfg: cfg, addrStore: addrStore, cfgStore: cfgStore, bcast: bc, bus: b, reg: reg, pool: pool, gw: gw, driver: driver}

	sched := scheduler.New(scheduler.Config{
		Registry:    reg,
		Bus:         b,
		Gateway:     gw,
		Broadcaster: bc,
		Store:       cfgStore,
		IOPool:      pool,
		SoftTimeout: cfg.SoftExecuteTimeout,
	})
	rt.sched = sched

	tbl := binding.New(cfgStore, b, sched)
	sched.SetBindings(tbl)
	rt.bindings = tbl

	rem := remanent.New(remanent.Config{Store: cfgStore, Source: sched, Interval: cfg.CheckpointInterval})
	rt.remanent = rem
	sched.SetRemanentSource(rem)

	instances, err := cfgStore.ListInstances()
	if err != nil {
		return nil, fmt.Errorf("list persisted instances: %w", err)
	}

	sched.Start()
	rem.Start()

	// Bindings must be loaded before any instance, since a loaded instance's
	// initial execution can write an output immediately and SetOutput only
	// reaches the bus for ports binding.Table already knows about.
	if err := tbl.Load(); err != nil {
		return nil, fmt.Errorf("load bindings: %w", err)
	}
	for _, inst := range instances {
		if err := sched.LoadInstance(inst); err != nil {
			return nil, fmt.Errorf("load instance %s: %w", inst.ID, err)
		}
	}

	metrics.RegisterComponent("scheduler", true, "running")
	metrics.RegisterComponent("storage", true, "open")
	metrics.RegisterComponent("bus", true, "running")
	if driver != nil {
		metrics.RegisterComponent("knx-driver", true, "connected")
	}

	collector := metrics.NewCollector(sched, addrStore)
	collector.Start()
	rt.collector = collector

	return rt, nil
}

// shutdown performs the spec's shutdown sequence: stop accepting triggers,
// drain the current execution, checkpoint every remanent instance, then
// close persistence.
func (rt *runtime) shutdown() error {
	if rt.collector != nil {
		rt.collector.Stop()
	}
	rt.sched.Stop()
	rt.remanent.Stop()
	rt.pool.Stop()
	if rt.driver != nil {
		_ = rt.driver.Close()
	}
	if err := rt.cfgStore.Close(); err != nil {
		return err
	}
	return rt.addrStore.Close()
}
