package metrics

import (
	"time"

	"github.com/brightwire/knxlogic/pkg/types"
)

// InstanceSource is the subset of the scheduler's surface the collector
// polls. Kept as a narrow interface here so this package never imports
// pkg/scheduler directly.
type InstanceSource interface {
	ListInstances() ([]*types.BlockInstance, error)
}

// AddressSource is the subset of the address bus surface the collector polls.
type AddressSource interface {
	ListAddresses() ([]*types.Address, error)
}

// Collector periodically samples gauge metrics that aren't naturally
// updated on their own event path (instance counts by state, address
// counts by kind).
type Collector struct {
	instances InstanceSource
	addresses AddressSource
	interval  time.Duration
	stopCh    chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(instances InstanceSource, addresses AddressSource) *Collector {
	return &Collector{
		instances: instances,
		addresses: addresses,
		interval:  15 * time.Second,
		stopCh:    make(chan struct{}),
	}
}

// Start begins periodic collection.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectInstanceMetrics()
	c.collectAddressMetrics()
}

func (c *Collector) collectInstanceMetrics() {
	instances, err := c.instances.ListInstances()
	if err != nil {
		return
	}

	counts := make(map[types.InstanceState]int)
	for _, inst := range instances {
		state := types.StateReady
		switch {
		case inst.Unloadable:
			state = types.StateUnloaded
		case !inst.Enabled:
			state = types.StateDisabled
		}
		counts[state]++
	}

	for _, state := range []types.InstanceState{
		types.StateUnloaded, types.StateRestoring, types.StateReady,
		types.StateExecuting, types.StateDisabled,
	} {
		InstancesTotal.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}

func (c *Collector) collectAddressMetrics() {
	addresses, err := c.addresses.ListAddresses()
	if err != nil {
		return
	}

	var external, internal int
	for _, a := range addresses {
		if a.Internal {
			internal++
		} else {
			external++
		}
	}

	AddressesTotal.WithLabelValues("external").Set(float64(external))
	AddressesTotal.WithLabelValues("internal").Set(float64(internal))
}
