package lua

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/kyval/internal/db"
	"github.com/dokzlo13/kyval/internal/kv"
)

func newRuntime(t *testing.T) (*Runtime, *kv.Store) {
	t.Helper()
	database, err := db.Open(context.Background(), db.Options{Target: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := kv.New(database)
	r := NewRuntime(store)
	t.Cleanup(r.Close)
	return r, store
}

func TestRuntime_KVRoundTrip(t *testing.T) {
	r, store := newRuntime(t)
	ctx := context.Background()

	err := r.RunString(ctx, `
		local kv = require("kv")
		kv.set("number", 42)
		kv.set("number", 10)
		assert(kv.get("number") == 10, "overwrite")

		kv.set("array", {"hola", "test"})
		local arr = kv.get("array")
		assert(arr[1] == "hola" and arr[2] == "test", "array")

		kv.remove_many({"number", "string"})
		assert(kv.get("number") == nil, "removed")
		assert(kv.get("never") == nil, "missing")

		kv.set("profile", {name = "ada", langs = {"en"}})
	`)
	require.NoError(t, err)

	arr, ok, err := kv.GetAs[[]string](ctx, store, "array")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"hola", "test"}, arr)

	profile, ok, err := store.Get(ctx, "profile")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, map[string]any{"name": "ada", "langs": []any{"en"}}, profile)
}

func TestRuntime_ListAndClear(t *testing.T) {
	r, store := newRuntime(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", json.RawMessage(`{"n":1}`)))
	require.NoError(t, store.SetWithTTL(ctx, "b", "temp", time.Hour))

	err := r.RunString(ctx, `
		local kv = require("kv")
		local items = kv.list()
		assert(#items == 2, "two entries")
		assert(items[1].key == "a" and items[1].value.n == 1, "first")
		assert(items[1].expires_at == nil, "no expiry")
		assert(items[2].key == "b" and items[2].expires_at ~= nil, "second")
		assert(kv.table == "kv_store", "table name")
		kv.clear()
		assert(#kv.list() == 0, "cleared")
	`)
	require.NoError(t, err)
}

func TestRuntime_SetWithTTL(t *testing.T) {
	r, store := newRuntime(t)
	ctx := context.Background()

	require.NoError(t, r.RunString(ctx, `require("kv").set("temp", "v", {ttl = 0.001})`))
	time.Sleep(20 * time.Millisecond)

	_, ok, err := store.Get(ctx, "temp")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRuntime_RunFile(t *testing.T) {
	r, store := newRuntime(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.lua")
	script := `
		local kv = require("kv")
		local log = require("log")
		kv.set("seeded", true)
		log.debug("seeded store", {key = "seeded"})
	`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))
	require.NoError(t, r.RunFile(ctx, path))

	v, ok, err := store.Get(ctx, "seeded")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, true, v)
}

func TestRuntime_Errors(t *testing.T) {
	r, _ := newRuntime(t)
	ctx := context.Background()

	require.Error(t, r.RunString(ctx, `error("boom")`))
	require.Error(t, r.RunFile(ctx, filepath.Join(t.TempDir(), "missing.lua")))

	r.Close()
	require.ErrorIs(t, r.RunString(ctx, `return 1`), ErrRuntimeClosed)
}
