package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/brightwire/knxlogic/pkg/log"
	"github.com/brightwire/knxlogic/pkg/types"
)

// TypeDescriptor is the read-only projection of a BlockType returned by
// ListTypes — callers outside the registry never see the executable Body.
type TypeDescriptor struct {
	Key          string
	Name         string
	Category     string
	Version      string
	Inputs       map[string]types.PortSchema
	Outputs      map[string]types.PortSchema
	Remanent     bool
	Help         string
	UserSupplied bool
}

func describe(bt *types.BlockType) TypeDescriptor {
	return TypeDescriptor{
		Key:          bt.Key,
		Name:         bt.Name,
		Category:     bt.Category,
		Version:      bt.Version,
		Inputs:       bt.Inputs,
		Outputs:      bt.Outputs,
		Remanent:     bt.Remanent,
		Help:         bt.Help,
		UserSupplied: bt.UserSupplied,
	}
}

// Registry discovers block types — built-ins compiled into the binary plus
// user-supplied plugin modules — and instantiates block instances from a
// type key.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]*types.BlockType
	user     map[string]*types.BlockType

	log zerolog.Logger
}

// defaultRegistry is populated by built-in block types' init() functions via
// Register before any Registry is constructed.
var (
	defaultMu       sync.Mutex
	defaultBuiltins = map[string]*types.BlockType{}
)

// Register adds a built-in block type to the set every new Registry starts
// with. Called from init() in builtins.go; panics on a duplicate key since
// that can only indicate a programming error in this package.
func Register(bt *types.BlockType) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if _, exists := defaultBuiltins[bt.Key]; exists {
		panic(fmt.Sprintf("registry: duplicate built-in type key %q", bt.Key))
	}
	if bt.Periodic && bt.Interval <= 0 {
		panic(fmt.Sprintf("registry: periodic built-in type %q has no interval", bt.Key))
	}
	defaultBuiltins[bt.Key] = bt
}

// New creates a Registry seeded with every built-in type registered so far.
func New() *Registry {
	defaultMu.Lock()
	builtins := make(map[string]*types.BlockType, len(defaultBuiltins))
	for k, v := range defaultBuiltins {
		builtins[k] = v
	}
	defaultMu.Unlock()

	return &Registry{
		builtins: builtins,
		user:     make(map[string]*types.BlockType),
		log:      log.WithComponent("registry"),
	}
}

// ListTypes returns every known type, built-in and user-supplied, sorted by
// key for stable output.
func (r *Registry) ListTypes() []TypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]TypeDescriptor, 0, len(r.builtins)+len(r.user))
	for _, bt := range r.builtins {
		out = append(out, describe(bt))
	}
	for _, bt := range r.user {
		out = append(out, describe(bt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Resolve looks up a block type by key, preferring a user-supplied type over
// a built-in of the same key (a custom block can shadow a built-in).
func (r *Registry) Resolve(typeKey string) (*types.BlockType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if bt, ok := r.user[typeKey]; ok {
		return bt, nil
	}
	if bt, ok := r.builtins[typeKey]; ok {
		return bt, nil
	}
	return nil, types.NewError(types.KindUnknownType, "block type %s not registered", typeKey)
}

// Instantiate creates a fresh BlockInstance of typeKey. It fails with
// unknown-type if the type is not registered; callers are responsible for
// retaining the persisted instance as unloadable rather than dropping it
// (invariant 1), since Instantiate itself has no notion of "unloadable".
func (r *Registry) Instantiate(typeKey, instanceID string) (*types.BlockInstance, error) {
	bt, err := r.Resolve(typeKey)
	if err != nil {
		return nil, err
	}

	inst := &types.BlockInstance{
		ID:      instanceID,
		TypeKey: typeKey,
		Inputs:  make(map[string]types.Value, len(bt.Inputs)),
		Outputs: make(map[string]types.Value, len(bt.Outputs)),
		Enabled: true,
	}
	for port, schema := range bt.Inputs {
		inst.Inputs[port] = schema.Default
	}
	for port, schema := range bt.Outputs {
		inst.Outputs[port] = schema.Default
	}
	return inst, nil
}

// pluginDescriptorSymbol is the exported symbol name every custom block .so
// must provide: a func() types.BlockType returning the type it implements.
const pluginDescriptorSymbol = "Descriptor"

// LoadFromPath scans dir for Go plugin modules (.so), replacing the entire
// prior set of user-supplied types atomically: either this call's result
// becomes the new set in full, or (if dir exists but can't be read) the
// prior set is left untouched. A missing dir counts as an empty one and
// clears the user set. A single module's load failure is logged and that
// module skipped; it never aborts the rest of the scan.
func (r *Registry) LoadFromPath(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.mu.Lock()
			r.user = make(map[string]*types.BlockType)
			r.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read custom blocks dir: %w", err)
	}

	loaded := make(map[string]*types.BlockType)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".so" {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		bt, err := loadPlugin(path)
		if err != nil {
			r.log.Error().Err(err).Str("file", entry.Name()).Msg("custom block load failed, skipping")
			continue
		}
		bt.UserSupplied = true

		if existing, dup := loaded[bt.Key]; dup {
			r.log.Error().Str("file", entry.Name()).Str("type", bt.Key).
				Str("already_loaded_from", existing.Key).
				Msg("duplicate custom block type key, keeping first loaded")
			continue
		}
		loaded[bt.Key] = bt
		r.log.Info().Str("file", entry.Name()).Str("type", bt.Key).Msg("custom block loaded")
	}

	r.mu.Lock()
	r.user = loaded
	r.mu.Unlock()
	return nil
}

func loadPlugin(path string) (*types.BlockType, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin: %w", err)
	}

	sym, err := p.Lookup(pluginDescriptorSymbol)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", pluginDescriptorSymbol, err)
	}

	descFn, ok := sym.(func() types.BlockType)
	if !ok {
		return nil, fmt.Errorf("%s has unexpected signature", pluginDescriptorSymbol)
	}

	bt := descFn()
	if bt.Key == "" {
		return nil, fmt.Errorf("descriptor has empty type key")
	}
	if bt.Body == nil {
		return nil, fmt.Errorf("descriptor %s has nil Body", bt.Key)
	}
	return &bt, nil
}
