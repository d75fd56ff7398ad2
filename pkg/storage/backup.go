package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brightwire/knxlogic/pkg/types"
)

// Backup is the single self-contained document produced by export and
// consumed by import: every persisted artifact plus the source of every
// user-supplied block type, so a backup restores a fully working
// installation on its own.
type Backup struct {
	Addresses   []*types.Address           `json:"addresses"`
	Instances   []*types.BlockInstance     `json:"instances"`
	Bindings    []*types.Binding           `json:"bindings"`
	Pages       []*types.Page              `json:"pages"`
	Remanent    []*types.RemanentSnapshot  `json:"remanent"`
	CustomBlock map[string][]byte          `json:"custom_blocks,omitempty"`
}

// Export builds a Backup from the two stores and the custom blocks
// directory, and writes it as indented JSON.
func Export(addrs AddressStore, cfg ConfigStore, customBlocksDir, destPath string) error {
	backup := Backup{}

	var err error
	if backup.Addresses, err = addrs.ListAddresses(); err != nil {
		return fmt.Errorf("export addresses: %w", err)
	}
	if backup.Instances, err = cfg.ListInstances(); err != nil {
		return fmt.Errorf("export instances: %w", err)
	}
	if backup.Bindings, err = cfg.ListBindings(); err != nil {
		return fmt.Errorf("export bindings: %w", err)
	}
	if backup.Pages, err = cfg.ListPages(); err != nil {
		return fmt.Errorf("export pages: %w", err)
	}
	if backup.Remanent, err = cfg.ListRemanentSnapshots(); err != nil {
		return fmt.Errorf("export remanent snapshots: %w", err)
	}

	if customBlocksDir != "" {
		backup.CustomBlock, err = readCustomBlocks(customBlocksDir)
		if err != nil {
			return fmt.Errorf("export custom blocks: %w", err)
		}
	}

	data, err := json.MarshalIndent(&backup, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}

	return atomicWriteFile(destPath, data)
}

// Import reads a Backup document and writes every record in it into both
// stores and, if customBlocksDir is set, rewrites custom block sources on
// disk. A record whose key already exists is overwritten; records that are
// not in the document are left in place, so Import merges rather than
// replaces.
func Import(addrs AddressStore, cfg ConfigStore, customBlocksDir, srcPath string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("decode backup: %w", err)
	}

	for _, a := range backup.Addresses {
		if err := addrs.CreateAddress(a); err != nil {
			return fmt.Errorf("restore address %s: %w", a.Key, err)
		}
	}
	for _, inst := range backup.Instances {
		if err := cfg.CreateInstance(inst); err != nil {
			return fmt.Errorf("restore instance %s: %w", inst.ID, err)
		}
	}
	for _, b := range backup.Bindings {
		if err := cfg.CreateBinding(b); err != nil {
			return fmt.Errorf("restore binding %s:%s: %w", b.Instance, b.Port, err)
		}
	}
	for _, p := range backup.Pages {
		if err := cfg.CreatePage(p); err != nil {
			return fmt.Errorf("restore page %s: %w", p.ID, err)
		}
	}
	for _, snap := range backup.Remanent {
		if err := cfg.SaveRemanentSnapshot(snap); err != nil {
			return fmt.Errorf("restore remanent snapshot %s: %w", snap.InstanceID, err)
		}
	}

	if customBlocksDir != "" && len(backup.CustomBlock) > 0 {
		if err := writeCustomBlocks(customBlocksDir, backup.CustomBlock); err != nil {
			return fmt.Errorf("restore custom blocks: %w", err)
		}
	}

	return nil
}

func readCustomBlocks(dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out[e.Name()] = data
	}
	return out, nil
}

func writeCustomBlocks(dir string, files map[string][]byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for name, data := range files {
		if err := atomicWriteFile(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

// atomicWriteFile writes to a temp file in the same directory and renames
// it into place, so a crash mid-write never leaves a truncated artifact.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}
