package modules

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/kyval/internal/kv"
)

// KVModule exposes a kv.Store to Lua.
//
//	local kv = require("kv")
//	kv.set("greeting", {text = "hola"}, {ttl = 60})
//	local v = kv.get("greeting")
//
// Storage failures are raised as Lua errors.
type KVModule struct {
	store *kv.Store
}

// NewKVModule creates a new KV module.
func NewKVModule(store *kv.Store) *KVModule {
	return &KVModule{store: store}
}

// Loader is the module loader for Lua.
func (m *KVModule) Loader(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get":         m.get,
		"set":         m.set,
		"remove":      m.remove,
		"remove_many": m.removeMany,
		"clear":       m.clear,
		"list":        m.list,
	})
	L.SetField(mod, "table", lua.LString(m.store.Table()))

	L.Push(mod)
	return 1
}

// get(key) -> value | nil
func (m *KVModule) get(L *lua.LState) int {
	key := L.CheckString(1)

	value, ok, err := m.store.Get(contextOf(L), key)
	if err != nil {
		L.RaiseError("kv.get(%q): %s", key, err.Error())
		return 0
	}
	if !ok {
		L.Push(lua.LNil)
		return 1
	}

	L.Push(GoToLuaValue(L, value))
	return 1
}

// set(key, value, opts) -> nil
// opts: { ttl = seconds }
func (m *KVModule) set(L *lua.LState) int {
	key := L.CheckString(1)
	value := LuaToGo(L.CheckAny(2))

	var ttl time.Duration
	if opts := L.OptTable(3, nil); opts != nil {
		if n, ok := L.GetField(opts, "ttl").(lua.LNumber); ok {
			ttl = time.Duration(float64(n) * float64(time.Second))
		}
	}

	if err := m.store.SetWithTTL(contextOf(L), key, value, ttl); err != nil {
		L.RaiseError("kv.set(%q): %s", key, err.Error())
	}
	return 0
}

// remove(key) -> nil
func (m *KVModule) remove(L *lua.LState) int {
	key := L.CheckString(1)

	if err := m.store.Remove(contextOf(L), key); err != nil {
		L.RaiseError("kv.remove(%q): %s", key, err.Error())
	}
	return 0
}

// remove_many({key, ...}) -> nil
func (m *KVModule) removeMany(L *lua.LState) int {
	tbl := L.CheckTable(1)

	var keys []string
	tbl.ForEach(func(_, v lua.LValue) {
		keys = append(keys, lua.LVAsString(v))
	})

	if err := m.store.RemoveMany(contextOf(L), keys); err != nil {
		L.RaiseError("kv.remove_many: %s", err.Error())
	}
	return 0
}

// clear() -> nil
func (m *KVModule) clear(L *lua.LState) int {
	if err := m.store.Clear(contextOf(L)); err != nil {
		L.RaiseError("kv.clear: %s", err.Error())
	}
	return 0
}

// list() -> { {key=, value=, expires_at=}, ... }
// expires_at is epoch milliseconds, absent when the key never expires.
func (m *KVModule) list(L *lua.LState) int {
	entries, err := m.store.List(contextOf(L))
	if err != nil {
		L.RaiseError("kv.list: %s", err.Error())
		return 0
	}

	tbl := L.NewTable()
	for i, entry := range entries {
		item := L.NewTable()
		item.RawSetString("key", lua.LString(entry.Key))
		item.RawSetString("value", GoToLuaValue(L, entry.Value))
		if !entry.ExpiresAt.IsZero() {
			item.RawSetString("expires_at", lua.LNumber(entry.ExpiresAt.UnixMilli()))
		}
		tbl.RawSetInt(i+1, item)
	}

	L.Push(tbl)
	return 1
}
