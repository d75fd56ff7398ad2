package storage

import (
	"github.com/brightwire/knxlogic/pkg/types"
)

// AddressStore persists the address bus's canonical records. It is backed by
// sqlite rather than bbolt because addresses are naturally tabular and the
// literal schema the runtime's external interface commits to is a SQL table.
type AddressStore interface {
	CreateAddress(addr *types.Address) error
	GetAddress(key string) (*types.Address, error)
	ListAddresses() ([]*types.Address, error)
	UpdateAddress(addr *types.Address) error
	DeleteAddress(key string) error
	Close() error
}

// ConfigStore persists everything else the runtime needs to survive a
// restart: block instances, bindings, page metadata, and remanent snapshots.
// It is backed by bbolt since these are accessed as whole-document JSON
// blobs, not queried relationally.
type ConfigStore interface {
	CreateInstance(inst *types.BlockInstance) error
	GetInstance(id string) (*types.BlockInstance, error)
	ListInstances() ([]*types.BlockInstance, error)
	UpdateInstance(inst *types.BlockInstance) error
	DeleteInstance(id string) error

	CreateBinding(b *types.Binding) error
	ListBindings() ([]*types.Binding, error)
	DeleteBinding(instanceID, port string) error

	CreatePage(p *types.Page) error
	GetPage(id string) (*types.Page, error)
	ListPages() ([]*types.Page, error)
	UpdatePage(p *types.Page) error
	DeletePage(id string) error

	SaveRemanentSnapshot(snap *types.RemanentSnapshot) error
	GetRemanentSnapshot(instanceID string) (*types.RemanentSnapshot, error)
	ListRemanentSnapshots() ([]*types.RemanentSnapshot, error)

	Close() error
}
