// Package lua runs Lua scripts against a key-value store.
package lua

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/kyval/internal/kv"
	"github.com/dokzlo13/kyval/internal/lua/modules"
)

// ErrRuntimeClosed is returned when the Lua runtime is closed
var ErrRuntimeClosed = fmt.Errorf("lua runtime closed")

// Runtime owns a Lua VM with the kv and log modules preloaded.
// Scripts run one at a time; the VM is not safe for concurrent use.
type Runtime struct {
	L      *lua.LState
	store  *kv.Store
	mu     sync.Mutex
	closed bool
}

// NewRuntime creates a new Lua runtime
func NewRuntime(store *kv.Store) *Runtime {
	r := &Runtime{
		L:     lua.NewState(),
		store: store,
	}
	r.registerModules()
	return r
}

// registerModules registers all Lua modules
func (r *Runtime) registerModules() {
	r.L.PreloadModule("log", modules.NewLogModule().Loader)
	r.L.PreloadModule("kv", modules.NewKVModule(r.store).Loader)
}

// RunFile executes a script file. Cancelling ctx aborts the script.
func (r *Runtime) RunFile(ctx context.Context, path string) error {
	return r.run(ctx, path, func() error { return r.L.DoFile(path) })
}

// RunString executes a chunk of Lua source.
func (r *Runtime) RunString(ctx context.Context, src string) error {
	return r.run(ctx, "<string>", func() error { return r.L.DoString(src) })
}

func (r *Runtime) run(ctx context.Context, name string, do func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}

	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	log.Debug().Str("script", name).Msg("Running Lua script")
	if err := do(); err != nil {
		return fmt.Errorf("lua script %s failed: %w", name, err)
	}
	return nil
}

// Close closes the Lua state.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		r.L.Close()
	}
}
