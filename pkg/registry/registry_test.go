package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightwire/knxlogic/pkg/types"
)

func TestBuiltinsRegistered(t *testing.T) {
	r := New()
	for _, key := range []string{"core.not", "core.and", "core.or", "core.threshold", "core.timer"} {
		_, err := r.Resolve(key)
		assert.NoError(t, err, key)
	}
}

func TestResolveUnknownType(t *testing.T) {
	r := New()
	_, err := r.Resolve("custom.nonexistent")
	require.Error(t, err)
	te, ok := err.(*types.Error)
	require.True(t, ok)
	assert.Equal(t, types.KindUnknownType, te.Kind)
}

func TestInstantiateSeedsDefaultPortValues(t *testing.T) {
	r := New()
	inst, err := r.Instantiate("core.not", "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "core.not", inst.TypeKey)
	assert.Contains(t, inst.Inputs, "in")
	assert.Contains(t, inst.Outputs, "out")
}

func TestInstantiateUnknownTypeFails(t *testing.T) {
	r := New()
	_, err := r.Instantiate("custom.nonexistent", "inst-1")
	require.Error(t, err)
}

// TestLoadFromPathMissingDirIsNotAnError mirrors the common case of a
// fresh install with no custom blocks directory yet.
func TestLoadFromPathMissingDirIsNotAnError(t *testing.T) {
	r := New()
	err := r.LoadFromPath(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	for _, d := range r.ListTypes() {
		assert.False(t, d.UserSupplied)
	}
}

// TestLoadFromPathIgnoresNonPluginFiles confirms a directory scan skips
// files that aren't .so modules rather than erroring on them.
func TestLoadFromPathIgnoresNonPluginFiles(t *testing.T) {
	r := New()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hi"), 0o644))

	require.NoError(t, r.LoadFromPath(dir))
	for _, d := range r.ListTypes() {
		assert.False(t, d.UserSupplied)
	}
}

func TestUserSuppliedTypeCanShadowBuiltin(t *testing.T) {
	r := New()
	r.mu.Lock()
	r.user["core.not"] = &types.BlockType{Key: "core.not", Body: executeNot, UserSupplied: true}
	r.mu.Unlock()

	bt, err := r.Resolve("core.not")
	require.NoError(t, err)
	assert.True(t, bt.UserSupplied)
}

func TestListTypesSortedByKey(t *testing.T) {
	r := New()
	descs := r.ListTypes()
	for i := 1; i < len(descs); i++ {
		assert.LessOrEqual(t, descs[i-1].Key, descs[i].Key)
	}
}
