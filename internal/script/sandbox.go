package script

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts what extension scripts can reach.
//
// Scripts get no filesystem, process or module-loading access: file
// content flows through handles the host passes into format callbacks,
// and require is limited to the built-in pure libraries plus modules the
// host preloads (the "mapstorm" API).
type Sandbox struct {
	L *lua.LState

	instructionLimit int64
	instructionCount int64
}

// NewSandbox creates a sandbox for the Lua state.
func NewSandbox(L *lua.LState, instructionLimit int64) *Sandbox {
	return &Sandbox{
		L:                L,
		instructionLimit: instructionLimit,
	}
}

// Install applies the restrictions to the state.
func (s *Sandbox) Install() {
	// Code-loading escape hatches.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installRestrictedRequire()
}

// installRestrictedRequire replaces require with a whitelist version.
// Only the pure built-in libraries and host-preloaded modules resolve;
// package.path is cleared so nothing can be loaded from disk.
func (s *Sandbox) installRestrictedRequire() {
	if pkg, ok := s.L.GetGlobal("package").(*lua.LTable); ok {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	allowed := map[string]bool{
		"string": true,
		"table":  true,
		"math":   true,
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		if allowed[name] || name == "mapstorm" {
			if originalRequire.Type() == lua.LTFunction {
				L.Push(originalRequire)
				L.Push(lua.LString(name))
				L.Call(1, 1)
				return 1
			}
		}

		L.RaiseError("module %q is not available", name)
		return 0 // unreachable
	}))
}

// ResetInstructionCount resets the per-call instruction counter.
func (s *Sandbox) ResetInstructionCount() {
	atomic.StoreInt64(&s.instructionCount, 0)
}

// InstructionCount returns the current instruction count.
func (s *Sandbox) InstructionCount() int64 {
	return atomic.LoadInt64(&s.instructionCount)
}

// AddInstructions adds to the counter and reports whether the budget is
// exhausted.
func (s *Sandbox) AddInstructions(n int64) bool {
	if s.instructionLimit <= 0 {
		return false
	}
	return atomic.AddInt64(&s.instructionCount, n) > s.instructionLimit
}

// limitContext counts interpreted instructions through the VM's context
// polling: gopher-lua consults Done() once per dispatched instruction,
// so each poll charges one instruction against the sandbox budget. Once
// the budget is exhausted Done() stays closed, which aborts the running
// call.
type limitContext struct {
	parent  context.Context
	sandbox *Sandbox

	once sync.Once
	done chan struct{}
}

func newLimitContext(parent context.Context, s *Sandbox) *limitContext {
	return &limitContext{
		parent:  parent,
		sandbox: s,
		done:    make(chan struct{}),
	}
}

func (c *limitContext) Done() <-chan struct{} {
	if c.sandbox.AddInstructions(1) {
		c.once.Do(func() { close(c.done) })
		return c.done
	}
	return c.parent.Done()
}

func (c *limitContext) Err() error {
	select {
	case <-c.done:
		return ErrInstructionLimit
	default:
	}
	return c.parent.Err()
}

// Exceeded reports whether the instruction budget tripped.
func (c *limitContext) Exceeded() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *limitContext) Deadline() (time.Time, bool) { return c.parent.Deadline() }

func (c *limitContext) Value(key any) any { return c.parent.Value(key) }
