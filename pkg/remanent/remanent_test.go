package remanent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

type fakeSource struct {
	snaps []*types.RemanentSnapshot
}

func (f *fakeSource) RemanentSnapshots() ([]*types.RemanentSnapshot, error) {
	return f.snaps, nil
}

func newStore(t *testing.T, src InstanceSource, interval time.Duration) (*Store, storage.ConfigStore) {
	t.Helper()
	cfgStore, err := storage.NewBoltConfigStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cfgStore.Close() })
	return New(Config{Store: cfgStore, Source: src, Interval: interval}), cfgStore
}

// TestCheckpointThenRestore implements scenario S5: a snapshot written by
// Checkpoint is returned verbatim by Restore.
func TestCheckpointThenRestore(t *testing.T) {
	src := &fakeSource{snaps: []*types.RemanentSnapshot{
		{InstanceID: "t1", State: []byte(`{"elapsed":7}`)},
	}}
	st, _ := newStore(t, src, time.Hour)

	require.NoError(t, st.Checkpoint())

	blob, ok := st.Restore("t1")
	require.True(t, ok)
	assert.JSONEq(t, `{"elapsed":7}`, string(blob))
}

func TestRestoreUnknownInstanceIsNotFound(t *testing.T) {
	st, _ := newStore(t, &fakeSource{}, time.Hour)
	_, ok := st.Restore("ghost")
	assert.False(t, ok)
}

func TestPeriodicCheckpointRuns(t *testing.T) {
	src := &fakeSource{snaps: []*types.RemanentSnapshot{
		{InstanceID: "t1", State: []byte(`{"elapsed":1}`)},
	}}
	st, _ := newStore(t, src, 20*time.Millisecond)
	st.Start()
	defer st.Stop()

	time.Sleep(80 * time.Millisecond)

	blob, ok := st.Restore("t1")
	require.True(t, ok)
	assert.JSONEq(t, `{"elapsed":1}`, string(blob))
}

func TestStopPerformsFinalCheckpoint(t *testing.T) {
	src := &fakeSource{}
	st, _ := newStore(t, src, time.Hour)
	st.Start()

	src.snaps = []*types.RemanentSnapshot{{InstanceID: "late", State: []byte(`{"elapsed":99}`)}}
	st.Stop()

	blob, ok := st.Restore("late")
	require.True(t, ok)
	assert.JSONEq(t, `{"elapsed":99}`, string(blob))
}
