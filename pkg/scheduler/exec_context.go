package scheduler

import (
	"time"

	"github.com/brightwire/knxlogic/pkg/types"
)

// execContext implements types.ExecContext for one executeInstance call.
// It is only ever used on the run goroutine, so it needs no locking.
type execContext struct {
	s           *Scheduler
	inst        *types.BlockInstance
	triggeredBy string
}

func (c *execContext) Input(port string) types.Value {
	return c.inst.Inputs[port]
}

func (c *execContext) SetOutput(port string, v types.Value) {
	c.inst.Outputs[port] = v
	if c.s.bindings == nil {
		return
	}
	address, bound := c.s.bindings.OutputAddress(c.inst.ID, port)
	if !bound {
		return
	}
	if err := c.s.writeOutput(address, v); err != nil {
		c.s.log.Warn().Str("instance", c.inst.ID).Str("port", port).Str("address", address).Err(err).Msg("block output write failed")
	}
}

func (c *execContext) TriggeredBy() string { return c.triggeredBy }

func (c *execContext) State() []byte { return c.inst.Remanent }

func (c *execContext) SetState(blob []byte) { c.inst.Remanent = blob }

func (c *execContext) Debug(key string, value interface{}) {
	ring := c.s.debugRings[c.inst.ID]
	ring = append(ring, debugEntry{At: time.Now(), Key: key, Value: value})
	if len(ring) > debugRingSize {
		ring = ring[len(ring)-debugRingSize:]
	}
	c.s.debugRings[c.inst.ID] = ring
}

func (c *execContext) Submit(fn func()) bool {
	if c.s.ioPool == nil {
		return false
	}
	return c.s.ioPool.Submit(fn)
}

// PostOutput and PostState are the only instance-state mutators safe to
// call off the run goroutine: they hand the mutation to the scheduler's
// job channel instead of touching c.inst directly.

func (c *execContext) PostOutput(port string, v types.Value) {
	c.s.postToInstance(c.inst.ID, func(inst *types.BlockInstance) {
		dc := &execContext{s: c.s, inst: inst}
		dc.SetOutput(port, v)
	})
}

func (c *execContext) PostState(blob []byte) {
	c.s.postToInstance(c.inst.ID, func(inst *types.BlockInstance) {
		inst.Remanent = blob
	})
}
