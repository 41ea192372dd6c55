package scripting

import (
	"encoding/json"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/kestrelab/memvault/pkg/log"
)

// registerAPIFunctions registers Go functions that are available to Lua scripts.
func registerAPIFunctions(L *lua.LState) {
	// Create a memvault table
	memvault := L.NewTable()

	L.SetField(memvault, "log", L.NewFunction(apiLog))
	L.SetField(memvault, "now", L.NewFunction(apiNow))
	L.SetField(memvault, "format_time", L.NewFunction(apiFormatTime))
	L.SetField(memvault, "json_encode", L.NewFunction(apiJSONEncode))
	L.SetField(memvault, "json_decode", L.NewFunction(apiJSONDecode))

	// Register the memvault table in the global namespace
	L.SetGlobal("memvault", memvault)
}

// apiLog is a function to log messages from Lua
func apiLog(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)

	switch level {
	case "debug":
		log.Debug("Lua script message", "message", message)
	case "info":
		log.Info("Lua script message", "message", message)
	case "warn", "warning":
		log.Warn("Lua script message", "message", message)
	case "error":
		log.Error("Lua script message", "message", message)
	default:
		log.Info("Lua script message", "message", message)
	}

	return 0
}

// apiNow returns the current time as a Unix timestamp
func apiNow(L *lua.LState) int {
	L.Push(lua.LNumber(time.Now().Unix()))
	return 1
}

// apiFormatTime formats a Unix timestamp as a string
func apiFormatTime(L *lua.LState) int {
	timestamp := L.CheckNumber(1)
	format := L.OptString(2, time.RFC3339)

	t := time.Unix(int64(timestamp), 0).UTC() // Use UTC to ensure consistent results
	L.Push(lua.LString(t.Format(format)))
	return 1
}

// apiJSONEncode encodes a Lua table to a JSON string
func apiJSONEncode(L *lua.LState) int {
	value := L.CheckAny(1)

	data, err := json.Marshal(convertLuaToGo(value))
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(lua.LString(data))
	return 1
}

// apiJSONDecode decodes a JSON string to a Lua table
func apiJSONDecode(L *lua.LState) int {
	jsonStr := L.CheckString(1)

	var value interface{}
	if err := json.Unmarshal([]byte(jsonStr), &value); err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	L.Push(convertGoToLua(L, value))
	return 1
}
