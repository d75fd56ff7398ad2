package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightwire/knxlogic/pkg/broadcast"
	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/metrics"
	"github.com/brightwire/knxlogic/pkg/storage"
	"github.com/brightwire/knxlogic/pkg/types"
)

// Bus is the address bus. It owns the canonical Address records and is the
// sole writer of record for bus values.
type Bus struct {
	mu    sync.RWMutex
	store storage.AddressStore
	bcast *broadcast.Broadcaster

	writeLocksMu sync.Mutex
	writeLocks   map[string]*sync.Mutex

	log zerolog.Logger
}

// New creates a Bus backed by store, publishing telegrams through bcast.
func New(store storage.AddressStore, bcast *broadcast.Broadcaster) *Bus {
	return &Bus{
		store:      store,
		bcast:      bcast,
		writeLocks: make(map[string]*sync.Mutex),
		log:        log.WithComponent("bus"),
	}
}

func (b *Bus) lockFor(key string) *sync.Mutex {
	b.writeLocksMu.Lock()
	defer b.writeLocksMu.Unlock()

	l, ok := b.writeLocks[key]
	if !ok {
		l = &sync.Mutex{}
		b.writeLocks[key] = l
	}
	return l
}

// Get returns the address record for key.
func (b *Bus) Get(key string) (*types.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.GetAddress(key)
}

// List returns every address on the bus.
func (b *Bus) List() ([]*types.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.store.ListAddresses()
}

// ListAddresses satisfies metrics.AddressSource.
func (b *Bus) ListAddresses() ([]*types.Address, error) { return b.List() }

// Create adds a new address. It fails with KindConflict if key already
// exists.
func (b *Bus) Create(addr *types.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.store.GetAddress(addr.Key); err == nil {
		return types.NewError(types.KindConflict, "address %s already exists", addr.Key)
	}

	if addr.Initial != nil {
		addr.LastValue = *addr.Initial
	} else if addr.LastValue.Kind == "" {
		addr.LastValue = types.NullValue()
	}
	addr.LastUpdated = time.Now()

	if err := b.store.CreateAddress(addr); err != nil {
		return err
	}
	b.log.Info().Str("address", addr.Key).Msg("address created")
	return nil
}

// EnsureIKO returns the existing internal address for key, or creates one
// with a null initial value if absent. Used by the binding table when
// auto-creating IKOs.
func (b *Bus) EnsureIKO(key string) (*types.Address, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.store.GetAddress(key)
	if err == nil {
		return existing, nil
	}

	addr := &types.Address{
		Key:         key,
		Internal:    true,
		LastValue:   types.NullValue(),
		LastUpdated: time.Now(),
	}
	if err := b.store.CreateAddress(addr); err != nil {
		return nil, err
	}
	b.log.Debug().Str("address", key).Msg("IKO address auto-created")
	return addr, nil
}

// Update replaces the metadata of an existing address (name, DPT, unit,
// group label) without touching its last value.
func (b *Bus) Update(addr *types.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.store.GetAddress(addr.Key)
	if err != nil {
		return err
	}
	addr.LastValue = existing.LastValue
	addr.LastUpdated = existing.LastUpdated
	return b.store.UpdateAddress(addr)
}

// Delete removes an address from the bus. Callers (the binding table) are
// responsible for rejecting deletion of an address that is still bound.
func (b *Bus) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.store.GetAddress(key); err != nil {
		return err
	}
	return b.store.DeleteAddress(key)
}

// Write sets a new value on an address, publishing a telegram unless the
// write is a block-out write that doesn't change the stored value — that
// suppression is what lets a block output and its own loopback input settle
// without re-triggering the scheduler on every cycle.
func (b *Bus) Write(key string, value types.Value, origin types.Origin) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BusWriteDuration)

	lock := b.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	b.mu.Lock()
	addr, err := b.store.GetAddress(key)
	if err != nil {
		b.mu.Unlock()
		return err
	}

	old := addr.LastValue
	unchanged := types.ValuesEqual(old, value)
	if unchanged && origin == types.OriginBlockOut {
		b.mu.Unlock()
		return nil
	}

	addr.LastValue = value
	addr.LastUpdated = time.Now()
	if err := b.store.UpdateAddress(addr); err != nil {
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	tg := &types.Telegram{
		ID:        uuid.NewString(),
		Timestamp: addr.LastUpdated,
		Address:   key,
		OldValue:  old,
		NewValue:  value,
		Origin:    origin,
	}
	if b.bcast != nil {
		b.bcast.Publish(tg)
	}
	return nil
}
