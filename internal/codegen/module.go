package codegen

import (
	"fmt"

	"tinygo.org/x/go-llvm"
)

// Module wraps an LLVM context/module/builder triple and exposes the
// declare/define vocabulary the compiler builds functions and scratch
// variables against. The method names mirror the module abstraction the
// native code generator was modeled on; the bodies are native LLVM, which
// needs no separate per-function "declare this global/function for use
// here" step the way some module backends do; those methods are kept as
// thin lookups so Compiler reads the same regardless of the backend.
type Module struct {
	ctx     llvm.Context
	mod     llvm.Module
	builder llvm.Builder

	dataCounter int
}

// NewModule creates an empty module named name with its own LLVM context.
func NewModule(name string) *Module {
	ctx := llvm.NewContext()
	return &Module{
		ctx:     ctx,
		mod:     ctx.NewModule(name),
		builder: ctx.NewBuilder(),
	}
}

// LLVMModule returns the underlying module, for the emitter to hand to a
// target machine.
func (m *Module) LLVMModule() llvm.Module { return m.mod }

// Dispose releases the context and builder. Call once compilation and
// emission are both done.
func (m *Module) Dispose() {
	m.builder.Dispose()
	m.ctx.Dispose()
}

// DeclareFunction declares (or returns the existing declaration of) a
// function named name with the given signature. export controls linkage:
// script and procedure bodies are internal so the linker may discard
// unused ones, while main and imported runtime-support calls need
// external linkage.
func (m *Module) DeclareFunction(name string, params []llvm.Type, ret llvm.Type, export bool) llvm.Value {
	if fn := m.mod.NamedFunction(name); !fn.IsNil() {
		return fn
	}
	ftyp := llvm.FunctionType(ret, params, false)
	fn := llvm.AddFunction(m.mod, name, ftyp)
	if !export {
		fn.SetLinkage(llvm.InternalLinkage)
	}
	return fn
}

// DeclareImportedFunction declares a function this module calls but does
// not define: one of the runtime-support ABI entry points linked in from
// libscratchsupport.a.
func (m *Module) DeclareImportedFunction(name string, params []llvm.Type, ret llvm.Type) llvm.Value {
	return m.DeclareFunction(name, params, ret, true)
}

// DefineFunction appends an entry block to fn and returns it, ready for
// the caller to populate with instructions.
func (m *Module) DefineFunction(fn llvm.Value) llvm.BasicBlock {
	return llvm.AddBasicBlock(fn, "entry")
}

// DeclareFunctionWithinFunction resolves name to a module-scoped function
// value for use as a call target inside a function body under
// construction.
func (m *Module) DeclareFunctionWithinFunction(name string) (llvm.Value, bool) {
	fn := m.mod.NamedFunction(name)
	return fn, !fn.IsNil()
}

// DeclareData creates a named global of typ.
func (m *Module) DeclareData(name string, typ llvm.Type, export bool) llvm.Value {
	g := llvm.AddGlobal(m.mod, typ, name)
	if !export {
		g.SetLinkage(llvm.InternalLinkage)
	}
	return g
}

// DefineData sets g's initializer.
func (m *Module) DefineData(g llvm.Value, init llvm.Value) {
	g.SetInitializer(init)
}

// DeclareDataWithinFunction resolves name to a module-scoped global for
// use inside a function body under construction.
func (m *Module) DeclareDataWithinFunction(name string) (llvm.Value, bool) {
	g := m.mod.NamedGlobal(name)
	return g, !g.IsNil()
}

// nextDataName returns a fresh unique name for an anonymous data blob,
// e.g. a say statement's string-literal payload.
func (m *Module) nextDataName() string {
	name := fmt.Sprintf("data.%d", m.dataCounter)
	m.dataCounter++
	return name
}

// PointerWidth returns the bit width of the pointer/size_t types the
// runtime-support ABI uses. The compiler only ever targets 64-bit hosts
// (spec.md §6), so this is fixed rather than read off a target machine
// that has not been attached at this point in the pipeline.
func (m *Module) PointerWidth() int { return 64 }
