package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/sevenleaf/ascendant/internal/game/dice"
)

// globalPackID is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no pack VM is found.
const globalPackID = "__global__"

// ActorInfo is a snapshot of an actor's state passed to Lua callbacks.
type ActorInfo struct {
	ID          string
	Name        string
	Health      int
	MaxHealth   int
	Disposition string
	Level       int
}

// Manager owns one sandboxed LState per content pack and exposes hook
// dispatch. Skill definitions name their on_cast / on_hit hooks; the hooks
// run only in the initiating participant's process so N observers of the
// same event never duplicate a side effect.
//
// Manager is safe for concurrent CallHook after all packs are loaded. Each
// pack's LState is single-threaded, so CallHook holds a per-pack mutex for
// the duration of the call; hooks run on whichever goroutine resolves the
// skill, and concurrent activations into the same pack queue behind each
// other.
type Manager struct {
	mu      sync.RWMutex
	states  map[string]*lua.LState
	locks   map[string]*sync.Mutex
	cancels map[string]context.CancelFunc
	roller  *dice.Roller
	logger  *zap.Logger

	// Injected after construction. nil = no-op in engine.* modules.
	GetActor func(id string) *ActorInfo
	Notice   func(actorID, msg string)
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with an empty pack map.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	return &Manager{
		states:  make(map[string]*lua.LState),
		locks:   make(map[string]*sync.Mutex),
		cancels: make(map[string]context.CancelFunc),
		roller:  roller,
		logger:  logger,
	}
}

// LoadPack creates a sandboxed VM for packID, registers all engine.* modules,
// then executes every *.lua file in scriptDir in lexicographic order.
//
// Precondition: packID must be non-empty; scriptDir must be a readable directory.
// Postcondition: Pack VM is registered; returns error on Lua load failure.
func (m *Manager) LoadPack(packID, scriptDir string, instLimit int) error {
	return m.loadInto(packID, scriptDir, instLimit)
}

// LoadGlobal creates the "__global__" VM for shared scripts accessible as a
// CallHook fallback from any pack.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalPackID, scriptDir, instLimit)
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		if oldCancel := m.cancels[key]; oldCancel != nil {
			oldCancel()
		}
		old.Close()
	}
	m.states[key] = L
	if m.locks[key] == nil {
		m.locks[key] = &sync.Mutex{}
	}
	m.cancels[key] = cancel
	m.mu.Unlock()
	return nil
}

// CallHook calls the named Lua global function in packID's VM. If the pack
// has no VM, the __global__ VM is tried as a fallback. Returns (LNil, nil) if
// the hook is not defined or no VM exists. Lua runtime errors are logged at
// Warn level and never propagated: a broken hook must not fail resolution.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(packID, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	key := packID
	L, ok := m.states[key]
	if !ok {
		key = globalPackID
		L = m.states[key]
	}
	lock := m.locks[key]
	m.mu.RUnlock()

	if L == nil {
		m.logger.Info("scripting: no VM for pack",
			zap.String("pack", packID),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	// One call at a time per LState: hooks run on the resolving caller's
	// goroutine, and two activations may land on the same pack at once.
	lock.Lock()
	defer lock.Unlock()

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	if err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("pack", packID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}

	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// OnCast dispatches a skill's on_cast hook. Satisfies the resolver's Hooks
// contract; failures are swallowed by CallHook.
func (m *Manager) OnCast(hook, skillID, casterID string) {
	m.CallHook(globalPackID, hook, lua.LString(skillID), lua.LString(casterID)) //nolint:errcheck
}

// OnHit dispatches a skill's on_hit hook with the target appended.
func (m *Manager) OnHit(hook, skillID, casterID, targetID string) {
	m.CallHook(globalPackID, hook, lua.LString(skillID), lua.LString(casterID), lua.LString(targetID)) //nolint:errcheck
}
