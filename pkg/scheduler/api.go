package scheduler

import (
	"github.com/brightwire/knxlogic/pkg/binding"
	"github.com/brightwire/knxlogic/pkg/metrics"
	"github.com/brightwire/knxlogic/pkg/types"
)

// LoadInstance registers a persisted instance at startup. A type that no
// longer resolves marks the instance unloadable rather than dropping it
// (invariant 1); an enabled, loadable instance gets its initial execution
// scheduled immediately.
func (s *Scheduler) LoadInstance(inst *types.BlockInstance) error {
	_, err := s.exec(func() (interface{}, error) {
		bt, rerr := s.reg.Resolve(inst.TypeKey)
		if rerr != nil {
			inst.Unloadable = true
			s.instances[inst.ID] = inst
			s.states[inst.ID] = types.StateUnloaded
			s.log.Warn().Str("instance", inst.ID).Str("type", inst.TypeKey).Msg("instance references unknown type, retained as unloadable")
			return nil, nil
		}

		inst.Unloadable = false
		if bt.Remanent && s.remanent != nil {
			s.states[inst.ID] = types.StateRestoring
			if blob, ok := s.remanent.Restore(inst.ID); ok {
				inst.Remanent = blob
			}
		}
		s.instances[inst.ID] = inst
		s.states[inst.ID] = types.StateReady

		if inst.Enabled {
			s.scheduleRun(inst.ID, string(types.TriggerInitial))
		} else {
			s.states[inst.ID] = types.StateDisabled
		}
		return nil, nil
	})
	return err
}

// Instantiate creates, persists and loads a new block instance of typeKey.
func (s *Scheduler) Instantiate(typeKey, instanceID, pageID, name string) (*types.BlockInstance, error) {
	val, err := s.exec(func() (interface{}, error) {
		inst, ierr := s.reg.Instantiate(typeKey, instanceID)
		if ierr != nil {
			return nil, ierr
		}
		inst.PageID = pageID
		inst.Name = name

		if err := s.store.CreateInstance(inst); err != nil {
			return nil, err
		}
		s.instances[inst.ID] = inst
		s.states[inst.ID] = types.StateReady
		s.scheduleRun(inst.ID, string(types.TriggerInitial))
		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*types.BlockInstance), nil
}

// SetEnabled administratively enables or disables an instance. Enabling
// resets the failure window and schedules a fresh initial run.
func (s *Scheduler) SetEnabled(instanceID string, enabled bool) error {
	_, err := s.exec(func() (interface{}, error) {
		inst, ok := s.instances[instanceID]
		if !ok {
			return nil, types.NewError(types.KindNotFound, "instance %s not found", instanceID)
		}
		inst.Enabled = enabled
		if err := s.store.UpdateInstance(inst); err != nil {
			return nil, err
		}
		if enabled {
			inst.FailureWindow = nil
			s.states[instanceID] = types.StateReady
			if !inst.Unloadable {
				s.scheduleRun(instanceID, string(types.TriggerInitial))
			}
		} else {
			s.states[instanceID] = types.StateDisabled
		}
		return nil, nil
	})
	return err
}

// SetInput delivers a synthetic input value directly to a port without
// touching any bus address.
func (s *Scheduler) SetInput(instanceID, port string, value types.Value) error {
	_, err := s.exec(func() (interface{}, error) {
		inst, ok := s.instances[instanceID]
		if !ok {
			return nil, types.NewError(types.KindNotFound, "instance %s not found", instanceID)
		}
		if inst.Unloadable {
			return nil, types.NewError(types.KindUnknownType, "instance %s is unloadable", instanceID)
		}
		bt, rerr := s.reg.Resolve(inst.TypeKey)
		if rerr != nil {
			return nil, rerr
		}
		schema := bt.Inputs[port]
		coerced := types.CoerceTo(value, schema.Type)
		old := inst.Inputs[port]
		inst.Inputs[port] = coerced
		if !types.ValuesEqual(old, coerced) {
			s.scheduleRun(instanceID, port)
		}
		return nil, nil
	})
	return err
}

// Trigger forces an execution regardless of input change detection.
func (s *Scheduler) Trigger(instanceID string) error {
	_, err := s.exec(func() (interface{}, error) {
		inst, ok := s.instances[instanceID]
		if !ok {
			return nil, types.NewError(types.KindNotFound, "instance %s not found", instanceID)
		}
		if inst.Unloadable {
			return nil, types.NewError(types.KindUnknownType, "instance %s is unloadable", instanceID)
		}
		s.scheduleRun(instanceID, string(types.TriggerManual))
		return nil, nil
	})
	return err
}

// Delete removes an instance from the scheduler and from storage. Callers
// are responsible for unbinding its ports first.
func (s *Scheduler) Delete(instanceID string) error {
	_, err := s.exec(func() (interface{}, error) {
		if _, ok := s.instances[instanceID]; !ok {
			return nil, types.NewError(types.KindNotFound, "instance %s not found", instanceID)
		}
		if err := s.store.DeleteInstance(instanceID); err != nil {
			return nil, err
		}
		delete(s.instances, instanceID)
		delete(s.states, instanceID)
		delete(s.lastTrigger, instanceID)
		delete(s.lastPeriodicRun, instanceID)
		delete(s.debugRings, instanceID)
		return nil, nil
	})
	return err
}

// GetInstance returns a copy-free pointer to the live instance record.
func (s *Scheduler) GetInstance(instanceID string) (*types.BlockInstance, error) {
	val, err := s.exec(func() (interface{}, error) {
		inst, ok := s.instances[instanceID]
		if !ok {
			return nil, types.NewError(types.KindNotFound, "instance %s not found", instanceID)
		}
		return inst, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*types.BlockInstance), nil
}

// State returns the lifecycle state of an instance.
func (s *Scheduler) State(instanceID string) (types.InstanceState, error) {
	val, err := s.exec(func() (interface{}, error) {
		st, ok := s.states[instanceID]
		if !ok {
			return types.InstanceState(""), types.NewError(types.KindNotFound, "instance %s not found", instanceID)
		}
		return st, nil
	})
	if err != nil {
		return "", err
	}
	return val.(types.InstanceState), nil
}

// ListInstances satisfies metrics.InstanceSource.
func (s *Scheduler) ListInstances() ([]*types.BlockInstance, error) {
	val, err := s.exec(func() (interface{}, error) {
		out := make([]*types.BlockInstance, 0, len(s.instances))
		for _, inst := range s.instances {
			out = append(out, inst)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]*types.BlockInstance), nil
}

// RemanentSnapshots returns the current in-memory state blob of every
// loaded remanent-capable instance, for pkg/remanent to checkpoint.
func (s *Scheduler) RemanentSnapshots() ([]*types.RemanentSnapshot, error) {
	val, err := s.exec(func() (interface{}, error) {
		var out []*types.RemanentSnapshot
		for id, inst := range s.instances {
			if inst.Unloadable || inst.Remanent == nil {
				continue
			}
			bt, err := s.reg.Resolve(inst.TypeKey)
			if err != nil || !bt.Remanent {
				continue
			}
			out = append(out, &types.RemanentSnapshot{InstanceID: id, State: inst.Remanent})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]*types.RemanentSnapshot), nil
}

// Lookup satisfies binding.InstanceLookup.
func (s *Scheduler) Lookup(instanceID string) (*binding.InstanceInfo, error) {
	val, err := s.exec(func() (interface{}, error) {
		inst, ok := s.instances[instanceID]
		if !ok {
			return nil, types.NewError(types.KindNotFound, "instance %s not found", instanceID)
		}
		info := &binding.InstanceInfo{ID: inst.ID, TypeKey: inst.TypeKey, Unloadable: inst.Unloadable}
		if !inst.Unloadable {
			if bt, err := s.reg.Resolve(inst.TypeKey); err == nil {
				info.InputPorts = bt.Inputs
				info.OutputPorts = bt.Outputs
			}
		}
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*binding.InstanceInfo), nil
}

// RefreshRunQueueDepth publishes the current run queue depth gauge. The
// caller is expected to invoke this on its own ticker; pkg/metrics.Collector
// polls instances and addresses but has no scheduler dependency, so this
// lives on Scheduler itself instead.
func (s *Scheduler) RefreshRunQueueDepth() {
	_, _ = s.exec(func() (interface{}, error) {
		metrics.RunQueueDepth.Set(float64(len(s.runQueue)))
		return nil, nil
	})
}
