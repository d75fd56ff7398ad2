package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/brightwire/knxlogic/pkg/types"
)

var (
	bucketInstances = []byte("instances")
	bucketBindings  = []byte("bindings")
	bucketPages     = []byte("pages")
	bucketRemanent  = []byte("remanent")
)

// BoltConfigStore implements ConfigStore using bbolt. Instances, bindings,
// pages and remanent snapshots are each stored as a whole-document JSON blob
// per key; there is no secondary indexing, matching the scale of a single
// installation's configuration rather than a multi-tenant dataset.
type BoltConfigStore struct {
	db *bolt.DB
}

// NewBoltConfigStore opens (creating if absent) the config database under
// dataDir.
func NewBoltConfigStore(dataDir string) (*BoltConfigStore, error) {
	dbPath := filepath.Join(dataDir, "config.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open config database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketInstances, bucketBindings, bucketPages, bucketRemanent} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltConfigStore{db: db}, nil
}

func (s *BoltConfigStore) Close() error { return s.db.Close() }

// Block instances

func (s *BoltConfigStore) CreateInstance(inst *types.BlockInstance) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(inst)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketInstances).Put([]byte(inst.ID), data)
	})
}

func (s *BoltConfigStore) GetInstance(id string) (*types.BlockInstance, error) {
	var inst types.BlockInstance
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketInstances).Get([]byte(id))
		if data == nil {
			return types.NewError(types.KindNotFound, "instance %s not found", id)
		}
		return json.Unmarshal(data, &inst)
	})
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *BoltConfigStore) ListInstances() ([]*types.BlockInstance, error) {
	var out []*types.BlockInstance
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstances).ForEach(func(k, v []byte) error {
			var inst types.BlockInstance
			if err := json.Unmarshal(v, &inst); err != nil {
				return fmt.Errorf("unmarshal instance %s: %w", k, err)
			}
			out = append(out, &inst)
			return nil
		})
	})
	return out, err
}

func (s *BoltConfigStore) UpdateInstance(inst *types.BlockInstance) error {
	return s.CreateInstance(inst)
}

func (s *BoltConfigStore) DeleteInstance(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketInstances).Delete([]byte(id))
	})
}

// Bindings are keyed by "<instance>:<port>" since a port has at most one
// binding.

func bindingKey(instanceID, port string) []byte {
	return []byte(instanceID + ":" + port)
}

func (s *BoltConfigStore) CreateBinding(b *types.Binding) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketBindings).Put(bindingKey(b.Instance, b.Port), data)
	})
}

func (s *BoltConfigStore) ListBindings() ([]*types.Binding, error) {
	var out []*types.Binding
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBindings).ForEach(func(k, v []byte) error {
			var b types.Binding
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("unmarshal binding %s: %w", k, err)
			}
			out = append(out, &b)
			return nil
		})
	})
	return out, err
}

func (s *BoltConfigStore) DeleteBinding(instanceID, port string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBindings).Delete(bindingKey(instanceID, port))
	})
}

// Pages

func (s *BoltConfigStore) CreatePage(p *types.Page) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPages).Put([]byte(p.ID), data)
	})
}

func (s *BoltConfigStore) GetPage(id string) (*types.Page, error) {
	var p types.Page
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPages).Get([]byte(id))
		if data == nil {
			return types.NewError(types.KindNotFound, "page %s not found", id)
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltConfigStore) ListPages() ([]*types.Page, error) {
	var out []*types.Page
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPages).ForEach(func(k, v []byte) error {
			var p types.Page
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("unmarshal page %s: %w", k, err)
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltConfigStore) UpdatePage(p *types.Page) error {
	return s.CreatePage(p)
}

func (s *BoltConfigStore) DeletePage(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPages).Delete([]byte(id))
	})
}

// Remanent snapshots

func (s *BoltConfigStore) SaveRemanentSnapshot(snap *types.RemanentSnapshot) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketRemanent).Put([]byte(snap.InstanceID), data)
	})
}

func (s *BoltConfigStore) GetRemanentSnapshot(instanceID string) (*types.RemanentSnapshot, error) {
	var snap types.RemanentSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRemanent).Get([]byte(instanceID))
		if data == nil {
			return types.NewError(types.KindNotFound, "remanent snapshot for %s not found", instanceID)
		}
		return json.Unmarshal(data, &snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *BoltConfigStore) ListRemanentSnapshots() ([]*types.RemanentSnapshot, error) {
	var out []*types.RemanentSnapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRemanent).ForEach(func(k, v []byte) error {
			var snap types.RemanentSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("unmarshal remanent snapshot %s: %w", k, err)
			}
			out = append(out, &snap)
			return nil
		})
	})
	return out, err
}
