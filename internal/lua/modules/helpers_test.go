package modules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestLuaToGo(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	require.NoError(t, L.DoString(`
		arr = {"a", "b"}
		obj = {x = 1, y = {true, false}}
		empty = {}
		mixed = {1, k = "v"}
		holes = {1, nil, 3}
		sparse = {[100000000] = 1}
	`))

	require.Equal(t, []any{"a", "b"}, LuaToGo(L.GetGlobal("arr")))
	require.Equal(t, map[string]any{"x": 1.0, "y": []any{true, false}}, LuaToGo(L.GetGlobal("obj")))
	require.Equal(t, map[string]any{}, LuaToGo(L.GetGlobal("empty")))
	require.Equal(t, map[string]any{"1": 1.0, "k": "v"}, LuaToGo(L.GetGlobal("mixed")))
	require.Equal(t, []any{1.0, nil, 3.0}, LuaToGo(L.GetGlobal("holes")))
	require.Equal(t, map[string]any{"100000000": 1.0}, LuaToGo(L.GetGlobal("sparse")))
	require.Nil(t, LuaToGo(lua.LNil))
}

func TestGoToLuaValue(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	require.Equal(t, lua.LNumber(42), GoToLuaValue(L, json.Number("42")))
	require.Equal(t, lua.LString("hi"), GoToLuaValue(L, "hi"))
	require.Equal(t, lua.LNil, GoToLuaValue(L, nil))

	tbl, ok := GoToLuaValue(L, map[string]any{"list": []any{json.Number("1"), "two"}}).(*lua.LTable)
	require.True(t, ok)
	list, ok := tbl.RawGetString("list").(*lua.LTable)
	require.True(t, ok)
	require.Equal(t, lua.LNumber(1), list.RawGetInt(1))
	require.Equal(t, lua.LString("two"), list.RawGetInt(2))
}
