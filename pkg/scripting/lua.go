package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/kestrelab/memvault/pkg/log"
)

// LuaEngine implements the Engine interface with gopher-lua. A single
// LState backs the engine; it is not goroutine-safe, so every call is
// serialized through a mutex.
type LuaEngine struct {
	mu     sync.Mutex
	state  *lua.LState
	config Config
	closed bool
}

// NewLuaEngine creates a Lua engine according to the configuration.
func NewLuaEngine(cfg Config) (*LuaEngine, error) {
	L := lua.NewState()

	if cfg.EnableSandboxing {
		setupSandbox(L)
	} else {
		L.OpenLibs()
	}
	registerAPIFunctions(L)

	log.Debug("Lua scripting engine initialized",
		"sandboxed", cfg.EnableSandboxing,
		"timeout_ms", cfg.ScriptTimeoutMs,
	)
	return &LuaEngine{state: L, config: cfg}, nil
}

// LoadScript implements the Engine interface.
func (e *LuaEngine) LoadScript(name string, content []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("engine is closed")
	}
	if err := e.state.DoString(string(content)); err != nil {
		return fmt.Errorf("failed to load script %s: %w", name, err)
	}
	log.Debug("Loaded Lua script", "name", name, "bytes", len(content))
	return nil
}

// LoadScriptFile implements the Engine interface.
func (e *LuaEngine) LoadScriptFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script file: %w", err)
	}
	return e.LoadScript(filepath.Base(path), content)
}

// LoadScriptDir implements the Engine interface.
func (e *LuaEngine) LoadScriptDir(dir string) error {
	return LoadAllScripts(e, dir)
}

// ExecuteFunction implements the Engine interface.
func (e *LuaEngine) ExecuteFunction(ctx context.Context, funcName string, args ...interface{}) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("engine is closed")
	}

	fn := e.state.GetGlobal(funcName)
	if fn == lua.LNil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionNotFound, funcName)
	}
	luaFn, ok := fn.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a function", ErrFunctionNotFound, funcName)
	}

	// Bound script runtime; a runaway hook must not stall retrieval.
	if e.config.ScriptTimeoutMs > 0 {
		timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(e.config.ScriptTimeoutMs)*time.Millisecond)
		defer cancel()
		e.state.SetContext(timeoutCtx)
		defer e.state.RemoveContext()
	}

	luaArgs := make([]lua.LValue, len(args))
	for i, arg := range args {
		luaArgs[i] = convertGoToLua(e.state, arg)
	}

	if err := e.state.CallByParam(lua.P{
		Fn:      luaFn,
		NRet:    1,
		Protect: true,
	}, luaArgs...); err != nil {
		return nil, fmt.Errorf("error executing %s: %w", funcName, err)
	}

	result := e.state.Get(-1)
	e.state.Pop(1)
	return convertLuaToGo(result), nil
}

// Close implements the Engine interface.
func (e *LuaEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.state.Close()
		e.closed = true
	}
	return nil
}

// convertGoToLua maps a Go value onto the equivalent Lua value.
func convertGoToLua(L *lua.LState, value interface{}) lua.LValue {
	switch v := value.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case string:
		return lua.LString(v)
	case []interface{}:
		table := L.NewTable()
		for _, item := range v {
			table.Append(convertGoToLua(L, item))
		}
		return table
	case map[string]interface{}:
		table := L.NewTable()
		for key, item := range v {
			table.RawSetString(key, convertGoToLua(L, item))
		}
		return table
	default:
		return lua.LString(fmt.Sprintf("%v", v))
	}
}

// convertLuaToGo maps a Lua value back onto a Go value. Tables with
// contiguous integer keys become slices, everything else becomes a map.
func convertLuaToGo(value lua.LValue) interface{} {
	switch v := value.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		length := v.Len()
		if length > 0 {
			out := make([]interface{}, 0, length)
			for i := 1; i <= length; i++ {
				out = append(out, convertLuaToGo(v.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]interface{})
		v.ForEach(func(key, item lua.LValue) {
			out[fmt.Sprintf("%v", key)] = convertLuaToGo(item)
		})
		return out
	default:
		return fmt.Sprintf("%v", v)
	}
}
