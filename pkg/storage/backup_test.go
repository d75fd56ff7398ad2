package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwire/knxlogic/pkg/types"
)

func TestExportImportRoundTrip(t *testing.T) {
	addrs := newTestAddressStore(t)
	cfg := newTestConfigStore(t)

	require.NoError(t, addrs.CreateAddress(&types.Address{Key: "1/1/1", Name: "switch", LastValue: types.BoolValue(true)}))
	require.NoError(t, cfg.CreateInstance(&types.BlockInstance{ID: "inst-1", TypeKey: "core.not", Enabled: true}))
	require.NoError(t, cfg.CreateBinding(&types.Binding{Instance: "inst-1", Port: "in", Direction: types.DirectionInput, Address: "1/1/1"}))
	require.NoError(t, cfg.CreatePage(&types.Page{ID: "page-1", Name: "Ground floor"}))
	require.NoError(t, cfg.SaveRemanentSnapshot(&types.RemanentSnapshot{InstanceID: "inst-1", State: []byte("{}")}))

	customDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(customDir, "sonos.go"), []byte("package custom"), 0o644))

	backupPath := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, Export(addrs, cfg, customDir, backupPath))

	data, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	freshAddrs := newTestAddressStore(t)
	freshCfg := newTestConfigStore(t)
	restoredBlocksDir := t.TempDir()

	require.NoError(t, Import(freshAddrs, freshCfg, restoredBlocksDir, backupPath))

	gotAddr, err := freshAddrs.GetAddress("1/1/1")
	require.NoError(t, err)
	assert.Equal(t, "switch", gotAddr.Name)

	gotInst, err := freshCfg.GetInstance("inst-1")
	require.NoError(t, err)
	assert.Equal(t, "core.not", gotInst.TypeKey)

	bindings, err := freshCfg.ListBindings()
	require.NoError(t, err)
	assert.Len(t, bindings, 1)

	restored, err := os.ReadFile(filepath.Join(restoredBlocksDir, "sonos.go"))
	require.NoError(t, err)
	assert.Equal(t, "package custom", string(restored))
}

func TestExportIsAtomic(t *testing.T) {
	addrs := newTestAddressStore(t)
	cfg := newTestConfigStore(t)

	dest := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, Export(addrs, cfg, "", dest))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}
