package script

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Default limits for a Runtime.
const (
	// DefaultExecutionTimeout bounds a single script call. The deadline
	// is enforced through the interpreter's context polling, so even a
	// busy loop is interrupted.
	DefaultExecutionTimeout = 5 * time.Second

	// DefaultInstructionLimit is the instruction budget per call.
	DefaultInstructionLimit = 10_000_000
)

// Runtime is a sandboxed Lua interpreter hosting extension code.
//
// All methods serialize on an internal mutex; the underlying LState must
// not be used from multiple goroutines concurrently.
type Runtime struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration
	instructionLimit int64

	sandbox  *Sandbox
	reporter *Reporter

	closed bool
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithExecutionTimeout sets the per-call execution timeout.
func WithExecutionTimeout(d time.Duration) RuntimeOption {
	return func(r *Runtime) {
		r.executionTimeout = d
	}
}

// WithInstructionLimit sets the instruction budget per call.
func WithInstructionLimit(limit int64) RuntimeOption {
	return func(r *Runtime) {
		r.instructionLimit = limit
	}
}

// NewRuntime creates a sandboxed Lua runtime.
func NewRuntime(opts ...RuntimeOption) (*Runtime, error) {
	r := &Runtime{
		executionTimeout: DefaultExecutionTimeout,
		instructionLimit: DefaultInstructionLimit,
		reporter:         NewReporter(),
	}

	for _, opt := range opts {
		opt(r)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	r.L = L

	openSafeLibraries(L)

	r.sandbox = NewSandbox(L, r.instructionLimit)
	r.sandbox.Install()

	return r, nil
}

// openSafeLibraries opens only the Lua standard libraries that cannot
// reach outside the interpreter.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenPackage(L) // needed for require; the sandbox empties its paths
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Deliberately not opened: io, os, debug. Scripts get file access
	// only through handles the host passes in.
}

// Reporter returns the runtime's error reporter.
func (r *Runtime) Reporter() *Reporter {
	return r.reporter
}

// Sandbox returns the runtime's sandbox.
func (r *Runtime) Sandbox() *Sandbox {
	return r.sandbox
}

// DoFile executes a Lua file. The call blocks until completion or error.
func (r *Runtime) DoFile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}

	return r.guarded(func() error {
		return r.L.DoFile(path)
	})
}

// DoString executes Lua source. The call blocks until completion or error.
func (r *Runtime) DoString(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}

	return r.guarded(func() error {
		return r.L.DoString(code)
	})
}

// guarded runs one script call under the runtime's limits: the
// instruction budget and, when configured, the execution deadline are
// installed as the interpreter context for the duration of the call.
// Limit violations map onto ErrInstructionLimit / ErrExecutionTimeout.
// Callers must hold r.mu.
func (r *Runtime) guarded(fn func() error) error {
	r.sandbox.ResetInstructionCount()

	parent := context.Background()
	cancel := context.CancelFunc(func() {})
	if r.executionTimeout > 0 {
		parent, cancel = context.WithTimeout(parent, r.executionTimeout)
	}
	defer cancel()

	budget := newLimitContext(parent, r.sandbox)
	r.L.SetContext(budget)
	defer r.L.RemoveContext()

	err := r.recovered(fn)
	if err == nil {
		return nil
	}
	if budget.Exceeded() {
		return fmt.Errorf("%w after %d instructions", ErrInstructionLimit, r.sandbox.InstructionCount())
	}
	if errors.Is(parent.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrExecutionTimeout, r.executionTimeout)
	}
	return err
}

// recovered runs fn, converting Lua panics into errors.
func (r *Runtime) recovered(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("lua panic: %v", p)
		}
	}()
	return fn()
}

// CallValue invokes a Lua function value with the given arguments and
// returns all results. This is how the host calls functions held inside
// script-provided tables.
func (r *Runtime) CallValue(fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRuntimeClosed
	}
	if fn == nil || fn.Type() != lua.LTFunction {
		return nil, ErrNotCallable
	}

	stackTop := r.L.GetTop()
	r.L.Push(fn)
	for _, arg := range args {
		r.L.Push(arg)
	}

	if err := r.guarded(func() error {
		return r.L.PCall(len(args), lua.MultRet, nil)
	}); err != nil {
		return nil, err
	}

	nRet := r.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = r.L.Get(stackTop + i + 1)
	}
	r.L.Pop(nRet)

	return results, nil
}

// CallGlobal invokes a global Lua function by name.
func (r *Runtime) CallGlobal(name string, args ...lua.LValue) ([]lua.LValue, error) {
	r.mu.Lock()
	fn := lua.LValue(lua.LNil)
	if !r.closed {
		fn = r.L.GetGlobal(name)
	}
	closed := r.closed
	r.mu.Unlock()

	if closed {
		return nil, ErrRuntimeClosed
	}
	if fn == lua.LNil {
		return nil, fmt.Errorf("function %q not found", name)
	}
	return r.CallValue(fn, args...)
}

// GetGlobal returns a global variable.
func (r *Runtime) GetGlobal(name string) lua.LValue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return lua.LNil
	}
	return r.L.GetGlobal(name)
}

// SetGlobal sets a global variable.
func (r *Runtime) SetGlobal(name string, value lua.LValue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.L.SetGlobal(name, value)
}

// RegisterModule installs a named table of Go functions as a global.
func (r *Runtime) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	mod := r.L.SetFuncs(r.L.NewTable(), funcs)
	r.L.SetGlobal(name, mod)
}

// LuaState returns the underlying gopher-lua state.
//
// Direct access bypasses the mutex and sandbox; callers own the risk.
func (r *Runtime) LuaState() *lua.LState {
	return r.L
}

// IsClosed reports whether Close has been called.
func (r *Runtime) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close releases the Lua state. Further calls return ErrRuntimeClosed.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.L.Close()
	r.closed = true
	return nil
}
