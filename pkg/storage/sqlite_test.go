package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwire/knxlogic/pkg/types"
)

func newTestAddressStore(t *testing.T) *SQLiteAddressStore {
	t.Helper()
	store, err := NewSQLiteAddressStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGetAddress(t *testing.T) {
	store := newTestAddressStore(t)

	initial := types.BoolValue(false)
	addr := &types.Address{
		Key:         "1/2/3",
		Name:        "Living room light",
		DPT:         "1.001",
		GroupLabel:  "lighting",
		Unit:        "",
		LastValue:   types.BoolValue(true),
		LastUpdated: time.Now().Truncate(time.Second),
		Initial:     &initial,
	}

	require.NoError(t, store.CreateAddress(addr))

	got, err := store.GetAddress("1/2/3")
	require.NoError(t, err)
	assert.Equal(t, addr.Name, got.Name)
	assert.Equal(t, addr.DPT, got.DPT)
	assert.True(t, types.ValuesEqual(addr.LastValue, got.LastValue))
	require.NotNil(t, got.Initial)
	assert.True(t, types.ValuesEqual(*addr.Initial, *got.Initial))
}

func TestGetAddressNotFound(t *testing.T) {
	store := newTestAddressStore(t)

	_, err := store.GetAddress("9/9/9")
	require.Error(t, err)
	assert.True(t, errIsKind(err, types.KindNotFound))
}

func errIsKind(err error, kind types.Kind) bool {
	te, ok := err.(*types.Error)
	return ok && te.Kind == kind
}

func TestListAddressesOrdersByKey(t *testing.T) {
	store := newTestAddressStore(t)

	for _, key := range []string{"2/0/0", "1/0/0", "3/0/0"} {
		require.NoError(t, store.CreateAddress(&types.Address{Key: key, LastValue: types.NullValue()}))
	}

	addrs, err := store.ListAddresses()
	require.NoError(t, err)
	require.Len(t, addrs, 3)
	assert.Equal(t, "1/0/0", addrs[0].Key)
	assert.Equal(t, "2/0/0", addrs[1].Key)
	assert.Equal(t, "3/0/0", addrs[2].Key)
}

func TestUpdateAddressUpserts(t *testing.T) {
	store := newTestAddressStore(t)

	addr := &types.Address{Key: "1/1/1", Name: "first", LastValue: types.IntValue(1)}
	require.NoError(t, store.CreateAddress(addr))

	addr.Name = "second"
	addr.LastValue = types.IntValue(2)
	require.NoError(t, store.UpdateAddress(addr))

	got, err := store.GetAddress("1/1/1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Name)
	assert.True(t, types.ValuesEqual(types.IntValue(2), got.LastValue))
}

func TestDeleteAddress(t *testing.T) {
	store := newTestAddressStore(t)

	require.NoError(t, store.CreateAddress(&types.Address{Key: "1/1/1", LastValue: types.NullValue()}))
	require.NoError(t, store.DeleteAddress("1/1/1"))

	_, err := store.GetAddress("1/1/1")
	assert.Error(t, err)
}

func TestIKOAddressRoundTrip(t *testing.T) {
	store := newTestAddressStore(t)

	key := types.IKOAddressKey("3_timer", "out")
	addr := &types.Address{
		Key:       key,
		Internal:  true,
		LastValue: types.RealValue(21.5),
	}
	require.NoError(t, store.CreateAddress(addr))

	got, err := store.GetAddress(key)
	require.NoError(t, err)
	assert.True(t, got.IsExternal() == false)
	assert.True(t, types.ValuesEqual(types.RealValue(21.5), got.LastValue))
}
