package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwire/knxlogic/pkg/broadcast"
	"github.com/brightwire/knxlogic/pkg/bus"
	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

// fakeLookup is a minimal InstanceLookup for tests; it never depends on the
// scheduler or registry packages.
type fakeLookup struct {
	instances map[string]*InstanceInfo
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{instances: make(map[string]*InstanceInfo)}
}

func (f *fakeLookup) add(info *InstanceInfo) { f.instances[info.ID] = info }

func (f *fakeLookup) Lookup(instanceID string) (*InstanceInfo, error) {
	info, ok := f.instances[instanceID]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "instance %s not found", instanceID)
	}
	return info, nil
}

func newTestTable(t *testing.T) (*Table, *bus.Bus, *fakeLookup, storage.ConfigStore) {
	t.Helper()

	addrStore, err := storage.NewSQLiteAddressStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { addrStore.Close() })

	cfgStore, err := storage.NewBoltConfigStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cfgStore.Close() })

	bc := broadcast.New(broadcast.MinRingSize)
	b := bus.New(addrStore, bc)

	lookup := newFakeLookup()
	tbl := New(cfgStore, b, lookup)
	return tbl, b, lookup, cfgStore
}

func switchInstance(id string) *InstanceInfo {
	return &InstanceInfo{
		ID:          id,
		TypeKey:     "core.switch",
		InputPorts:  map[string]types.PortSchema{"in": {Name: "in", Type: types.PortBool}},
		OutputPorts: map[string]types.PortSchema{"out": {Name: "out", Type: types.PortBool}},
	}
}

func TestBindToExplicitAddress(t *testing.T) {
	tbl, b, lookup, _ := newTestTable(t)
	lookup.add(switchInstance("inst-1"))
	require.NoError(t, b.Create(&types.Address{Key: "1/1/1"}))

	require.NoError(t, tbl.Bind("inst-1", "in", types.DirectionInput, "1/1/1"))

	subs := tbl.SubscribersOf("1/1/1")
	require.Len(t, subs, 1)
	assert.Equal(t, "inst-1", subs[0].Instance)
}

func TestBindUnknownPortRejected(t *testing.T) {
	tbl, b, lookup, _ := newTestTable(t)
	lookup.add(switchInstance("inst-1"))
	require.NoError(t, b.Create(&types.Address{Key: "1/1/1"}))

	err := tbl.Bind("inst-1", "nope", types.DirectionInput, "1/1/1")
	require.Error(t, err)
	te, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindUnknownPort, te.Kind)
}

func TestBindTwiceWithoutUnbindFails(t *testing.T) {
	tbl, b, lookup, _ := newTestTable(t)
	lookup.add(switchInstance("inst-1"))
	require.NoError(t, b.Create(&types.Address{Key: "1/1/1"}))
	require.NoError(t, b.Create(&types.Address{Key: "1/1/2"}))

	require.NoError(t, tbl.Bind("inst-1", "in", types.DirectionInput, "1/1/1"))
	err := tbl.Bind("inst-1", "in", types.DirectionInput, "1/1/2")
	require.Error(t, err)
	te, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindAlreadyBound, te.Kind)
}

func TestUnbindThenRebindSucceeds(t *testing.T) {
	tbl, b, lookup, _ := newTestTable(t)
	lookup.add(switchInstance("inst-1"))
	require.NoError(t, b.Create(&types.Address{Key: "1/1/1"}))
	require.NoError(t, b.Create(&types.Address{Key: "1/1/2"}))

	require.NoError(t, tbl.Bind("inst-1", "in", types.DirectionInput, "1/1/1"))
	require.NoError(t, tbl.Unbind("inst-1", "in"))
	require.NoError(t, tbl.Bind("inst-1", "in", types.DirectionInput, "1/1/2"))

	assert.Empty(t, tbl.SubscribersOf("1/1/1"))
	assert.Len(t, tbl.SubscribersOf("1/1/2"), 1)
}

func TestAmbiguousOutputRejected(t *testing.T) {
	tbl, b, lookup, _ := newTestTable(t)
	lookup.add(switchInstance("inst-1"))
	lookup.add(switchInstance("inst-2"))
	require.NoError(t, b.Create(&types.Address{Key: "1/1/1"}))

	require.NoError(t, tbl.Bind("inst-1", "out", types.DirectionOutput, "1/1/1"))
	err := tbl.Bind("inst-2", "out", types.DirectionOutput, "1/1/1")
	require.Error(t, err)
	te, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindAmbiguousOutput, te.Kind)
}

// TestBlockShorthandMaterializesIKO exercises the open-question decision:
// BLOCK: shorthand is expanded to an IKO key at bind time and never
// persisted as shorthand.
func TestBlockShorthandMaterializesIKO(t *testing.T) {
	tbl, b, lookup, store := newTestTable(t)
	lookup.add(switchInstance("source"))
	lookup.add(switchInstance("sink"))

	shorthand := types.BlockShorthand("source", "out")
	require.NoError(t, tbl.Bind("sink", "in", types.DirectionInput, shorthand))

	bindings, err := store.ListBindings()
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.NotEqual(t, shorthand, bindings[0].Address)
	assert.Contains(t, bindings[0].Address, "IKO:")

	_, err = b.Get(bindings[0].Address)
	assert.NoError(t, err)
}

func TestBindUnloadableInstanceSkipsPortValidation(t *testing.T) {
	tbl, b, lookup, _ := newTestTable(t)
	lookup.add(&InstanceInfo{ID: "broken", Unloadable: true})
	require.NoError(t, b.Create(&types.Address{Key: "1/1/1"}))

	err := tbl.Bind("broken", "whatever", types.DirectionInput, "1/1/1")
	require.NoError(t, err)
}

func TestIsBoundReflectsOutputsAndInputs(t *testing.T) {
	tbl, b, lookup, _ := newTestTable(t)
	lookup.add(switchInstance("inst-1"))
	require.NoError(t, b.Create(&types.Address{Key: "1/1/1"}))

	assert.False(t, tbl.IsBound("1/1/1"))
	require.NoError(t, tbl.Bind("inst-1", "out", types.DirectionOutput, "1/1/1"))
	assert.True(t, tbl.IsBound("1/1/1"))
}
