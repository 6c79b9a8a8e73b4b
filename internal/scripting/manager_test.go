package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/sevenleaf/ascendant/internal/game/dice"
	"github.com/sevenleaf/ascendant/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	src := dice.NewCryptoSource()
	roller := dice.NewLoggedRoller(src, logger)
	return scripting.NewManager(roller, logger), logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadPack_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadPack("testpack", dir, 0))
	ret, err := mgr.CallHook("testpack", "test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "empty.lua", `-- no functions`)
	require.NoError(t, mgr.LoadPack("testpack", dir, 0))
	ret, err := mgr.CallHook("testpack", "nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_UnknownPack_LogsInfoReturnsNil(t *testing.T) {
	mgr, logs := newTestManager(t)
	ret, err := mgr.CallHook("no_such_pack", "some_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	found := false
	for _, e := range logs.All() {
		if e.Level == zap.InfoLevel {
			found = true
			break
		}
	}
	assert.True(t, found, "expected Info log for missing pack")
}

func TestManager_CallHook_RuntimeError_WarnLogNoPanic(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `
		function bad_hook()
			error("intentional error")
		end
	`)
	require.NoError(t, mgr.LoadPack("testpack", dir, 0))
	ret, err := mgr.CallHook("testpack", "bad_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	found := false
	for _, e := range logs.All() {
		if e.Level == zap.WarnLevel {
			found = true
			break
		}
	}
	assert.True(t, found, "expected Warn log for Lua runtime error")
}

func TestManager_LoadGlobal_CallHookFallback(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "global.lua", `
		function global_hook()
			return 42
		end
	`)
	require.NoError(t, mgr.LoadGlobal(dir, 0))
	// "unknownpack" has no VM; falls back to __global__.
	ret, err := mgr.CallHook("unknownpack", "global_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(42), ret)
}

func TestManager_LoadPack_EmptyDir_NoError(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir() // no .lua files
	require.NoError(t, mgr.LoadPack("emptypack", dir, 0))
	ret, err := mgr.CallHook("emptypack", "anything")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_LoadPack_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	err := mgr.LoadPack("badpack", dir, 0)
	assert.Error(t, err)
}

func TestManager_LoadPack_Reload_ReplacesVM(t *testing.T) {
	mgr, _ := newTestManager(t)
	first := writeTempLua(t, "a.lua", `function version() return 1 end`)
	require.NoError(t, mgr.LoadPack("core", first, 0))
	second := writeTempLua(t, "a.lua", `function version() return 2 end`)
	require.NoError(t, mgr.LoadPack("core", second, 0))
	ret, err := mgr.CallHook("core", "version")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(2), ret)
}

func TestManager_OnCastOnHit_ForwardArgs(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		last = {}
		function fireball_cast(skill, caster)
			last.cast = skill .. "/" .. caster
		end
		function fireball_hit(skill, caster, target)
			last.hit = skill .. "/" .. caster .. "/" .. target
		end
		function last_cast() return last.cast end
		function last_hit() return last.hit end
	`)
	require.NoError(t, mgr.LoadGlobal(dir, 0))

	mgr.OnCast("fireball_cast", "fireball", "hero")
	mgr.OnHit("fireball_hit", "fireball", "hero", "ghoul")

	cast, err := mgr.CallHook("anything", "last_cast")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("fireball/hero"), cast)
	hit, err := mgr.CallHook("anything", "last_hit")
	require.NoError(t, err)
	assert.Equal(t, lua.LString("fireball/hero/ghoul"), hit)
}

func TestProperty_CallHookMissingPackNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	rapid.Check(t, func(rt *rapid.T) {
		packID := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "pack")
		hook := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "hook")
		count := rapid.IntRange(1, 20).Draw(rt, "count")
		for i := 0; i < count; i++ {
			mgr.CallHook(packID, hook) //nolint:errcheck
		}
	})
}

func TestManager_CallHookConcurrentDistinctPacks_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t)
	packs := []string{"alpha", "beta", "gamma"}
	for _, p := range packs {
		dir := writeTempLua(t, "hooks.lua", `
			function add(a, b)
				return a + b
			end
		`)
		require.NoError(t, mgr.LoadPack(p, dir, 0))
	}

	const callsEach = 10
	var wg sync.WaitGroup
	wg.Add(len(packs))
	for _, p := range packs {
		go func(pack string) {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				ret, err := mgr.CallHook(pack, "add", lua.LNumber(1), lua.LNumber(2))
				assert.NoError(t, err)
				assert.Equal(t, lua.LNumber(3), ret)
			}
		}(p)
	}
	wg.Wait()
}

// Two activations can resolve the same pack's hooks from different
// goroutines at once; the per-pack lock must keep the LState coherent.
func TestManager_CallHookConcurrentSamePack_Serialized(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		counter = 0
		function bump()
			counter = counter + 1
			return counter
		end
	`)
	require.NoError(t, mgr.LoadPack("arena", dir, 0))

	const workers = 4
	const callsEach = 25
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				_, err := mgr.CallHook("arena", "bump")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	ret, err := mgr.CallHook("arena", "bump")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(workers*callsEach+1), ret)
}
