package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

// Document is the single self-contained export-backup artifact.
type Document struct {
	Addresses    []*types.Address       `json:"addresses"`
	Instances    []*types.BlockInstance `json:"instances"`
	Bindings     []*types.Binding       `json:"bindings"`
	Pages        []*types.Page          `json:"pages"`
	CustomBlocks map[string][]byte      `json:"customBlocks,omitempty"`
}

// Export builds a Document from the live stores and the custom-blocks
// directory. customBlocksDir may be empty, in which case CustomBlocks is
// omitted.
func Export(addrStore storage.AddressStore, cfgStore storage.ConfigStore, customBlocksDir string) (*Document, error) {
	addrs, err := addrStore.ListAddresses()
	if err != nil {
		return nil, fmt.Errorf("export: list addresses: %w", err)
	}
	instances, err := cfgStore.ListInstances()
	if err != nil {
		return nil, fmt.Errorf("export: list instances: %w", err)
	}
	bindings, err := cfgStore.ListBindings()
	if err != nil {
		return nil, fmt.Errorf("export: list bindings: %w", err)
	}
	pages, err := cfgStore.ListPages()
	if err != nil {
		return nil, fmt.Errorf("export: list pages: %w", err)
	}

	doc := &Document{Addresses: addrs, Instances: instances, Bindings: bindings, Pages: pages}

	if customBlocksDir != "" {
		blocks, err := readCustomBlocks(customBlocksDir)
		if err != nil {
			return nil, fmt.Errorf("export: read custom blocks: %w", err)
		}
		doc.CustomBlocks = blocks
	}

	return doc, nil
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

// WriteTo marshals doc as indented JSON to path.
func (d *Document) WriteTo(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and parses a Document previously written by WriteTo.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load backup %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", path, err)
	}
	return &doc, nil
}

// Import merges doc's contents into the live stores.
// Existing data for a key that also appears in doc is overwritten;
// existing data absent from doc is left untouched (import is additive, not
// a wipe-and-replace, so a partial backup can be merged safely).
func (d *Document) Import(addrStore storage.AddressStore, cfgStore storage.ConfigStore, customBlocksDir string) error {
	for _, addr := range d.Addresses {
		if err := upsertAddress(addrStore, addr); err != nil {
			return fmt.Errorf("import address %s: %w", addr.Key, err)
		}
	}
	for _, inst := range d.Instances {
		if err := upsertInstance(cfgStore, inst); err != nil {
			return fmt.Errorf("import instance %s: %w", inst.ID, err)
		}
	}
	for _, b := range d.Bindings {
		if err := cfgStore.CreateBinding(b); err != nil {
			return fmt.Errorf("import binding %s/%s: %w", b.Instance, b.Port, err)
		}
	}
	for _, p := range d.Pages {
		if err := upsertPage(cfgStore, p); err != nil {
			return fmt.Errorf("import page %s: %w", p.ID, err)
		}
	}

	if customBlocksDir != "" && len(d.CustomBlocks) > 0 {
		if err := os.MkdirAll(customBlocksDir, 0o755); err != nil {
			return fmt.Errorf("import custom blocks: %w", err)
		}
		for name, data := range d.CustomBlocks {
			if err := os.WriteFile(filepath.Join(customBlocksDir, name), data, 0o644); err != nil {
				return fmt.Errorf("import custom block %s: %w", name, err)
			}
		}
	}

	return nil
}

func upsertAddress(store storage.AddressStore, addr *types.Address) error {
	if err := store.CreateAddress(addr); err != nil {
		return store.UpdateAddress(addr)
	}
	return nil
}

func upsertInstance(store storage.ConfigStore, inst *types.BlockInstance) error {
	if err := store.CreateInstance(inst); err != nil {
		return store.UpdateInstance(inst)
	}
	return nil
}

func upsertPage(store storage.ConfigStore, p *types.Page) error {
	if err := store.CreatePage(p); err != nil {
		return store.UpdatePage(p)
	}
	return nil
}
