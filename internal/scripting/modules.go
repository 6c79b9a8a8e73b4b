package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap/zapcore"
)

// RegisterModules registers all engine.* Lua tables into L:
//
//	engine.log.debug/info/warn/error(msg)
//	engine.dice.roll(expr) -> {total, dice, modifier}
//	engine.actor.get(id)   -> {id, name, health, max_health, disposition, level} or nil
//	engine.notice(id, msg)
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	engine := L.NewTable()

	logTable := L.NewTable()
	L.SetField(logTable, "debug", L.NewFunction(m.luaLog(zapcore.DebugLevel)))
	L.SetField(logTable, "info", L.NewFunction(m.luaLog(zapcore.InfoLevel)))
	L.SetField(logTable, "warn", L.NewFunction(m.luaLog(zapcore.WarnLevel)))
	L.SetField(logTable, "error", L.NewFunction(m.luaLog(zapcore.ErrorLevel)))
	L.SetField(engine, "log", logTable)

	diceTable := L.NewTable()
	L.SetField(diceTable, "roll", L.NewFunction(m.luaRoll))
	L.SetField(engine, "dice", diceTable)

	actorTable := L.NewTable()
	L.SetField(actorTable, "get", L.NewFunction(m.luaGetActor))
	L.SetField(engine, "actor", actorTable)

	L.SetField(engine, "notice", L.NewFunction(m.luaNotice))

	L.SetGlobal("engine", engine)
}

func (m *Manager) luaLog(level zapcore.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := L.CheckString(1)
		if ce := m.logger.Check(level, "lua: "+msg); ce != nil {
			ce.Write()
		}
		return 0
	}
}

// luaRoll evaluates a dice expression and returns {total, dice, modifier}.
// A malformed expression raises a Lua error catchable with pcall.
func (m *Manager) luaRoll(L *lua.LState) int {
	expr := L.CheckString(1)
	result, err := m.roller.RollExpr(expr)
	if err != nil {
		L.RaiseError("bad dice expression %q: %v", expr, err)
		return 0
	}
	sum := 0
	for _, d := range result.Dice {
		sum += d
	}
	t := L.NewTable()
	L.SetField(t, "total", lua.LNumber(result.Total()))
	L.SetField(t, "dice", lua.LNumber(sum))
	L.SetField(t, "modifier", lua.LNumber(result.Modifier))
	L.Push(t)
	return 1
}

// luaGetActor returns a snapshot table for an actor, or nil when the
// callback is missing or the actor is unknown.
func (m *Manager) luaGetActor(L *lua.LState) int {
	id := L.CheckString(1)
	if m.GetActor == nil {
		L.Push(lua.LNil)
		return 1
	}
	info := m.GetActor(id)
	if info == nil {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(info.ID))
	L.SetField(t, "name", lua.LString(info.Name))
	L.SetField(t, "health", lua.LNumber(info.Health))
	L.SetField(t, "max_health", lua.LNumber(info.MaxHealth))
	L.SetField(t, "disposition", lua.LString(info.Disposition))
	L.SetField(t, "level", lua.LNumber(info.Level))
	L.Push(t)
	return 1
}

// luaNotice forwards a user-facing message to the injected callback.
// No callback means a silent no-op.
func (m *Manager) luaNotice(L *lua.LState) int {
	actorID := L.CheckString(1)
	msg := L.CheckString(2)
	if m.Notice != nil {
		m.Notice(actorID, msg)
	}
	return 0
}
