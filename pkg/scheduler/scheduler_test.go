package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwire/knxlogic/pkg/binding"
	"github.com/brightwire/knxlogic/pkg/broadcast"
	"github.com/brightwire/knxlogic/pkg/bus"
	"github.com/brightwire/knxlogic/pkg/registry"
	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

type testRig struct {
	sched    *Scheduler
	bus      *bus.Bus
	bcast    *broadcast.Broadcaster
	bindings *binding.Table
	reg      *registry.Registry
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	addrStore, err := storage.NewSQLiteAddressStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { addrStore.Close() })

	cfgStore, err := storage.NewBoltConfigStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cfgStore.Close() })

	bc := broadcast.New(broadcast.MinRingSize)
	b := bus.New(addrStore, bc)
	reg := registry.New()

	sched := New(Config{
		Registry:    reg,
		Bus:         b,
		Broadcaster: bc,
		Store:       cfgStore,
		SoftTimeout: time.Second,
	})
	tbl := binding.New(cfgStore, b, sched)
	sched.SetBindings(tbl)

	sched.Start()
	t.Cleanup(sched.Stop)

	return &testRig{sched: sched, bus: b, bcast: bc, bindings: tbl, reg: reg}
}

func waitForTelegram(t *testing.T, sub broadcast.Subscriber, timeout time.Duration) *types.Telegram {
	t.Helper()
	select {
	case tg := <-sub:
		return tg
	case <-time.After(timeout):
		t.Fatal("timed out waiting for telegram")
		return nil
	}
}

// TestSwitchLoopback implements scenario S1: a NOT block between an
// external switch and an IKO.
func TestSwitchLoopback(t *testing.T) {
	rig := newTestRig(t)

	require.NoError(t, rig.bus.Create(&types.Address{Key: "1/1/1"}))
	inst, err := rig.sched.Instantiate("core.not", "n1", "", "not-1")
	require.NoError(t, err)

	require.NoError(t, rig.bindings.Bind(inst.ID, "in", types.DirectionInput, "1/1/1"))
	require.NoError(t, rig.bindings.Bind(inst.ID, "out", types.DirectionOutput, types.BlockShorthand(inst.ID, "out")))

	outAddr := rig.bindings.BindingsOf(inst.ID)
	var ikoKey string
	for _, b := range outAddr {
		if b.Port == "out" {
			ikoKey = b.Address
		}
	}
	require.NotEmpty(t, ikoKey)

	sub := rig.bcast.Subscribe()

	require.NoError(t, rig.bus.Write("1/1/1", types.BoolValue(true), types.OriginAPI))

	tg1 := waitForTelegram(t, sub, 2*time.Second)
	assert.Equal(t, "1/1/1", tg1.Address)

	tg2 := waitForTelegram(t, sub, 2*time.Second)
	assert.Equal(t, ikoKey, tg2.Address)
	assert.True(t, types.ValuesEqual(types.BoolValue(false), tg2.NewValue))

	require.NoError(t, rig.bus.Write("1/1/1", types.BoolValue(true), types.OriginAPI))
	tg3 := waitForTelegram(t, sub, 2*time.Second)
	assert.Equal(t, "1/1/1", tg3.Address)
	assert.Equal(t, types.OriginAPI, tg3.Origin)
	select {
	case tg := <-sub:
		t.Fatalf("unexpected block-out telegram on unchanged write chain: %+v", tg)
	case <-time.After(300 * time.Millisecond):
	}
}

// TestTimerOscillation implements scenario S3: a remanent timer block whose
// output is bound to its own IKO toggles on each periodic run and
// oscillates without runaway or a stack overflow.
func TestTimerOscillation(t *testing.T) {
	rig := newTestRig(t)

	inst, err := rig.sched.Instantiate("core.timer", "t1", "", "timer-1")
	require.NoError(t, err)

	var outAddr string
	for _, b := range rig.bindings.BindingsOf(inst.ID) {
		if b.Port == "out" {
			outAddr = b.Address
		}
	}
	if outAddr == "" {
		require.NoError(t, rig.bindings.Bind(inst.ID, "out", types.DirectionOutput, types.BlockShorthand(inst.ID, "out")))
		for _, b := range rig.bindings.BindingsOf(inst.ID) {
			if b.Port == "out" {
				outAddr = b.Address
			}
		}
	}
	require.NotEmpty(t, outAddr)

	sub := rig.bcast.Subscribe()

	count := 0
	deadline := time.After(3 * time.Second)
loop:
	for {
		select {
		case <-sub:
			count++
		case <-deadline:
			break loop
		}
	}
	assert.GreaterOrEqual(t, count, 3)
}

// TestUnloadableInstanceRetained implements scenario S4: an instance
// referencing a now-unknown type is retained, not dropped.
func TestUnloadableInstanceRetained(t *testing.T) {
	rig := newTestRig(t)

	inst := &types.BlockInstance{
		ID:      "ghost",
		TypeKey: "custom.long_gone",
		Enabled: true,
		Inputs:  map[string]types.Value{},
		Outputs: map[string]types.Value{},
	}
	require.NoError(t, rig.sched.LoadInstance(inst))

	got, err := rig.sched.GetInstance("ghost")
	require.NoError(t, err)
	assert.True(t, got.Unloadable)

	err = rig.sched.Trigger("ghost")
	require.Error(t, err)
	te, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindUnknownType, te.Kind)

	require.NoError(t, rig.sched.Delete("ghost"))
	_, err = rig.sched.GetInstance("ghost")
	require.Error(t, err)
}

func TestManualTriggerRunsRegardlessOfInputChange(t *testing.T) {
	rig := newTestRig(t)

	inst, err := rig.sched.Instantiate("core.and", "a1", "", "and-1")
	require.NoError(t, err)

	require.NoError(t, rig.sched.Trigger(inst.ID))
	require.NoError(t, rig.sched.Trigger(inst.ID))

	got, err := rig.sched.GetInstance(inst.ID)
	require.NoError(t, err)
	assert.False(t, got.Unloadable)
}

func TestAutoDisableAfterThreeFailures(t *testing.T) {
	registry.Register(&types.BlockType{
		Key:     "test.always_fails",
		Name:    "AlwaysFails",
		Outputs: map[string]types.PortSchema{},
		Body: func(ctx types.ExecContext) error {
			return assert.AnError
		},
	})

	rig := newTestRig(t)
	inst, err := rig.sched.Instantiate("test.always_fails", "f1", "", "fails-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, rig.sched.Trigger(inst.ID))
		time.Sleep(50 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	st, err := rig.sched.State(inst.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateDisabled, st)
}
