package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

func TestExportImportRoundTrip(t *testing.T) {
	addrStore, err := storage.NewSQLiteAddressStore(t.TempDir())
	require.NoError(t, err)
	defer addrStore.Close()
	cfgStore, err := storage.NewBoltConfigStore(t.TempDir())
	require.NoError(t, err)
	defer cfgStore.Close()

	require.NoError(t, addrStore.CreateAddress(&types.Address{Key: "1/1/1", DPT: "1.001"}))
	require.NoError(t, cfgStore.CreateInstance(&types.BlockInstance{ID: "n1", TypeKey: "core.not", Inputs: map[string]types.Value{}, Outputs: map[string]types.Value{}}))
	require.NoError(t, cfgStore.CreateBinding(&types.Binding{Instance: "n1", Port: "in", Direction: types.DirectionInput, Address: "1/1/1"}))

	doc, err := Export(addrStore, cfgStore, "")
	require.NoError(t, err)
	assert.Len(t, doc.Addresses, 1)
	assert.Len(t, doc.Instances, 1)
	assert.Len(t, doc.Bindings, 1)

	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, doc.WriteTo(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Addresses[0].Key, loaded.Addresses[0].Key)

	addrStore2, err := storage.NewSQLiteAddressStore(t.TempDir())
	require.NoError(t, err)
	defer addrStore2.Close()
	cfgStore2, err := storage.NewBoltConfigStore(t.TempDir())
	require.NoError(t, err)
	defer cfgStore2.Close()

	require.NoError(t, loaded.Import(addrStore2, cfgStore2, ""))

	got, err := addrStore2.GetAddress("1/1/1")
	require.NoError(t, err)
	assert.Equal(t, "1.001", got.DPT)
}

func TestExportIncludesCustomBlockFiles(t *testing.T) {
	addrStore, err := storage.NewSQLiteAddressStore(t.TempDir())
	require.NoError(t, err)
	defer addrStore.Close()
	cfgStore, err := storage.NewBoltConfigStore(t.TempDir())
	require.NoError(t, err)
	defer cfgStore.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.so"), []byte("fake-plugin-bytes"), 0o644))

	doc, err := Export(addrStore, cfgStore, dir)
	require.NoError(t, err)
	require.Contains(t, doc.CustomBlocks, "custom.so")
	assert.Equal(t, []byte("fake-plugin-bytes"), doc.CustomBlocks["custom.so"])
}

func TestExportMissingCustomBlocksDirIsNotAnError(t *testing.T) {
	addrStore, err := storage.NewSQLiteAddressStore(t.TempDir())
	require.NoError(t, err)
	defer addrStore.Close()
	cfgStore, err := storage.NewBoltConfigStore(t.TempDir())
	require.NoError(t, err)
	defer cfgStore.Close()

	doc, err := Export(addrStore, cfgStore, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Nil(t, doc.CustomBlocks)
}
