package binding

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/brightwire/knxlogic/pkg/bus"
	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

const blockShorthandPrefix = "BLOCK:"

// InstanceInfo is the subset of a block instance's identity the binding
// table needs to validate and derive addresses, without depending on the
// scheduler or registry packages directly.
type InstanceInfo struct {
	ID          string
	TypeKey     string
	Unloadable  bool
	InputPorts  map[string]types.PortSchema
	OutputPorts map[string]types.PortSchema
}

// InstanceLookup resolves a block instance ID to its port schema. The
// scheduler and registry together satisfy this.
type InstanceLookup interface {
	Lookup(instanceID string) (*InstanceInfo, error)
}

// Table is the binding table.
type Table struct {
	mu        sync.RWMutex
	store     storage.ConfigStore
	bus       *bus.Bus
	instances InstanceLookup

	byInstance map[string]map[string]*types.Binding // instance -> port -> binding
	byAddress  map[string][]*types.Binding           // address -> bindings (inputs that read it)
	outputOf   map[string]string                     // address -> "instance:port" of its sole writer

	log zerolog.Logger
}

// New creates an empty binding table. Load must be called to populate it
// from storage before use.
func New(store storage.ConfigStore, busInst *bus.Bus, instances InstanceLookup) *Table {
	return &Table{
		store:      store,
		bus:        busInst,
		instances:  instances,
		byInstance: make(map[string]map[string]*types.Binding),
		byAddress:  make(map[string][]*types.Binding),
		outputOf:   make(map[string]string),
		log:        log.WithComponent("binding"),
	}
}

// Load populates the table's in-memory indexes from storage.
func (t *Table) Load() error {
	bindings, err := t.store.ListBindings()
	if err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range bindings {
		t.index(b)
	}
	return nil
}

func (t *Table) index(b *types.Binding) {
	if t.byInstance[b.Instance] == nil {
		t.byInstance[b.Instance] = make(map[string]*types.Binding)
	}
	t.byInstance[b.Instance][b.Port] = b

	if b.Direction == types.DirectionInput {
		t.byAddress[b.Address] = append(t.byAddress[b.Address], b)
	} else {
		t.outputOf[b.Address] = b.Instance + ":" + b.Port
	}
}

func (t *Table) unindex(instanceID, port string) {
	existing, ok := t.byInstance[instanceID][port]
	if !ok {
		return
	}
	delete(t.byInstance[instanceID], port)

	if existing.Direction == types.DirectionInput {
		subs := t.byAddress[existing.Address]
		for i, s := range subs {
			if s.Instance == instanceID && s.Port == port {
				t.byAddress[existing.Address] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	} else {
		delete(t.outputOf, existing.Address)
	}
}

// Bind creates a binding from instanceID's port to an address, which may be
// the BLOCK: shorthand for another instance's output port.
func (t *Table) Bind(instanceID, port string, direction types.Direction, address string) error {
	info, err := t.instances.Lookup(instanceID)
	if err != nil {
		return err
	}

	if !info.Unloadable {
		schema := info.InputPorts
		if direction == types.DirectionOutput {
			schema = info.OutputPorts
		}
		if _, ok := schema[port]; !ok {
			return types.NewError(types.KindUnknownPort, "instance %s has no %s port %q", instanceID, direction, port)
		}
	}

	resolvedAddress, err := t.resolveAddress(address)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byInstance[instanceID][port]; ok {
		return types.NewError(types.KindAlreadyBound, "instance %s port %s is already bound", instanceID, port)
	}

	if direction == types.DirectionOutput {
		if writer, ok := t.outputOf[resolvedAddress]; ok && writer != instanceID+":"+port {
			return types.NewError(types.KindAmbiguousOutput, "address %s already has an output writer (%s)", resolvedAddress, writer)
		}
	}

	b := &types.Binding{Instance: instanceID, Port: port, Direction: direction, Address: resolvedAddress}
	if err := t.store.CreateBinding(b); err != nil {
		return fmt.Errorf("persist binding: %w", err)
	}
	t.index(b)
	t.log.Info().Str("instance", instanceID).Str("port", port).Str("address", resolvedAddress).Msg("bound")
	return nil
}

// resolveAddress expands the BLOCK: shorthand into a concrete, persisted IKO
// address, auto-creating it on the bus if needed. It never returns the
// shorthand itself: invariant (i) of the runtime's open questions.
func (t *Table) resolveAddress(address string) (string, error) {
	if !strings.HasPrefix(address, blockShorthandPrefix) {
		if _, err := t.bus.Get(address); err != nil {
			return "", err
		}
		return address, nil
	}

	parts := strings.SplitN(strings.TrimPrefix(address, blockShorthandPrefix), ":", 2)
	if len(parts) != 2 {
		return "", types.NewError(types.KindConflict, "malformed BLOCK shorthand %q", address)
	}
	sourceInstance, sourcePort := parts[0], parts[1]

	sourceInfo, err := t.instances.Lookup(sourceInstance)
	if err != nil {
		return "", err
	}
	if !sourceInfo.Unloadable {
		if _, ok := sourceInfo.OutputPorts[sourcePort]; !ok {
			return "", types.NewError(types.KindUnknownPort, "instance %s has no output port %q", sourceInstance, sourcePort)
		}
	}

	ikoKey := types.IKOAddressKey(ikoScope(sourceInstance, sourceInfo.TypeKey), sourcePort)

	if _, err := t.bus.EnsureIKO(ikoKey); err != nil {
		return "", fmt.Errorf("ensure IKO for %s: %w", address, err)
	}
	return ikoKey, nil
}

// ikoScope builds the "<short-instance-number>_<type-name>" scope used for
// auto-generated IKOs. The short number is extracted deterministically from
// the trailing digits of the instance id; instances without a numeric
// suffix fall back to a stable hash so the scope is still deterministic
// across restarts.
func ikoScope(instanceID, typeKey string) string {
	typeName := typeKey
	if idx := strings.LastIndex(typeName, "."); idx >= 0 {
		typeName = typeName[idx+1:]
	}
	return fmt.Sprintf("%d_%s", shortInstanceNumber(instanceID), typeName)
}

// shortInstanceNumber extracts the trailing run of digits from instanceID,
// or a stable FNV-1a hash truncated to a positive 32-bit number if it has
// none.
func shortInstanceNumber(instanceID string) uint32 {
	end := len(instanceID)
	start := end
	for start > 0 && instanceID[start-1] >= '0' && instanceID[start-1] <= '9' {
		start--
	}
	if start < end {
		if n, err := strconv.ParseUint(instanceID[start:end], 10, 32); err == nil {
			return uint32(n)
		}
	}

	var hash uint32 = 2166136261
	for i := 0; i < len(instanceID); i++ {
		hash ^= uint32(instanceID[i])
		hash *= 16777619
	}
	return hash
}

// Unbind removes the binding for instanceID's port, if any.
func (t *Table) Unbind(instanceID, port string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byInstance[instanceID][port]; !ok {
		return types.NewError(types.KindNotFound, "no binding for instance %s port %s", instanceID, port)
	}
	if err := t.store.DeleteBinding(instanceID, port); err != nil {
		return fmt.Errorf("delete binding: %w", err)
	}
	t.unindex(instanceID, port)
	return nil
}

// SubscribersOf returns the input bindings that read from address.
func (t *Table) SubscribersOf(address string) []*types.Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	subs := t.byAddress[address]
	out := make([]*types.Binding, len(subs))
	copy(out, subs)
	return out
}

// BindingsOf returns every binding (input and output) for instanceID.
func (t *Table) BindingsOf(instanceID string) []*types.Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*types.Binding, 0, len(t.byInstance[instanceID]))
	for _, b := range t.byInstance[instanceID] {
		out = append(out, b)
	}
	return out
}

// OutputAddress returns the bus address instanceID's port is bound to as an
// output, if any. Used by the scheduler to route a block's SetOutput call.
func (t *Table) OutputAddress(instanceID, port string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, ok := t.byInstance[instanceID][port]
	if !ok || b.Direction != types.DirectionOutput {
		return "", false
	}
	return b.Address, true
}

// IsBound reports whether address has any bindings at all (input or output),
// used by the bus layer's callers to refuse deleting an in-use address.
func (t *Table) IsBound(address string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.byAddress[address]) > 0 {
		return true
	}
	_, ok := t.outputOf[address]
	return ok
}
