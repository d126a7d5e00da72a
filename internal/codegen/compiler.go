// Package codegen lowers a hydrated Program (package hydrate) straight to
// native code through LLVM, the way the tool this compiler is modeled on
// lowers straight to its own backend IR with no separate custom
// intermediate representation in between (spec.md §4.3).
package codegen

import (
	"fmt"
	"strconv"

	"tinygo.org/x/go-llvm"

	"github.com/scratchc/scratchc/internal/hydrate"
	"github.com/scratchc/scratchc/internal/logging"
)

var log = logging.New("codegen")

// Compiler holds the cross-function state threaded through lowering: the
// scratch variable cells and the procedure table, the latter populated
// before any procedure body is lowered so recursive calls resolve
// (spec.md §4.3, §9).
type Compiler struct {
	mod         *Module
	scratchVars map[string]llvm.Value
	procedures  map[string]llvm.Value
}

// NewCompiler returns a Compiler that declares into mod.
func NewCompiler(mod *Module) *Compiler {
	return &Compiler{
		mod:         mod,
		scratchVars: make(map[string]llvm.Value),
		procedures:  make(map[string]llvm.Value),
	}
}

func (c *Compiler) createScratchVar(name string) {
	g := c.mod.DeclareData(name, llvm.DoubleType(), false)
	c.mod.DefineData(g, llvm.ConstFloat(llvm.DoubleType(), 0))
	c.scratchVars[name] = g
}

func (c *Compiler) loadScratchVar(b llvm.Builder, name string) llvm.Value {
	return b.CreateLoad(c.scratchVars[name], "")
}

func (c *Compiler) storeScratchVar(b llvm.Builder, name string, v llvm.Value) {
	b.CreateStore(v, c.scratchVars[name])
}

// BlockCompiler lowers one function body: a script, or a procedure. ends
// is the stack of "fall off the end of this chain, go here instead"
// targets that gives Repeat and IfElse their structured fall-through
// (spec.md §4.3): Forever pushes its own entry block to form a back edge,
// Repeat and IfElse push their respective successor blocks.
type BlockCompiler struct {
	c    *Compiler
	mod  *Module
	b    llvm.Builder
	fn   llvm.Value
	ends []llvm.BasicBlock
	args map[string]llvm.Value // parameter name -> alloca slot
}

func (bc *BlockCompiler) newBlock(name string) llvm.BasicBlock {
	return llvm.AddBasicBlock(bc.fn, name)
}

func (bc *BlockCompiler) importFunc(name string, params []llvm.Type, ret llvm.Type) llvm.Value {
	return bc.mod.DeclareImportedFunction(name, params, ret)
}

// fallOffEnd terminates the current block: a jump to the innermost
// pending end target, or a bare return when there is none.
func (bc *BlockCompiler) fallOffEnd() {
	if n := len(bc.ends); n > 0 {
		bc.b.CreateBr(bc.ends[n-1])
		return
	}
	bc.b.CreateRetVoid()
}

// buildValue lowers a Value to a double-valued instruction sequence.
func (bc *BlockCompiler) buildValue(v hydrate.Value) llvm.Value {
	switch val := v.(type) {
	case hydrate.NumberValue:
		return llvm.ConstFloat(llvm.DoubleType(), val.N)
	case hydrate.StringValue:
		n, err := strconv.ParseFloat(val.S, 64)
		if err != nil {
			n = 0
		}
		return llvm.ConstFloat(llvm.DoubleType(), n)
	case hydrate.LoadValue:
		return bc.c.loadScratchVar(bc.b, val.ID)
	case hydrate.ExpressionValue:
		return bc.buildExpressionValue(val.Expr)
	default:
		panic(fmt.Sprintf("codegen: unhandled value %T", v))
	}
}

// comparisonValue lowers expr to an i1 if it is one of the two
// comparison reporters, reporting ok=false otherwise.
func (bc *BlockCompiler) comparisonValue(expr hydrate.BlockExpression) (val llvm.Value, ok bool) {
	switch e := expr.(type) {
	case *hydrate.EqualsExpr:
		return bc.b.CreateFCmp(llvm.FloatOEQ, bc.buildValue(e.Left), bc.buildValue(e.Right), ""), true
	case *hydrate.GreaterThanExpr:
		return bc.b.CreateFCmp(llvm.FloatOGT, bc.buildValue(e.Left), bc.buildValue(e.Right), ""), true
	default:
		return llvm.Value{}, false
	}
}

// buildExpressionValue lowers a reporter used in a general (non-condition)
// context. Equals/GreaterThan widen their native i1 to a 0.0/1.0 double so
// they can still flow into arithmetic or a variable store.
func (bc *BlockCompiler) buildExpressionValue(expr hydrate.BlockExpression) llvm.Value {
	if cmp, ok := bc.comparisonValue(expr); ok {
		return bc.b.CreateUIToFP(cmp, llvm.DoubleType(), "")
	}
	switch e := expr.(type) {
	case *hydrate.AddExpr:
		return bc.b.CreateFAdd(bc.buildValue(e.Left), bc.buildValue(e.Right), "")
	case *hydrate.SubtractExpr:
		return bc.b.CreateFSub(bc.buildValue(e.Left), bc.buildValue(e.Right), "")
	case *hydrate.ArgumentReporterExpr:
		return bc.b.CreateLoad(bc.args[e.Name], "")
	default:
		panic(fmt.Sprintf("codegen: unhandled reporter %T", expr))
	}
}

// buildCondition lowers a Value used as a branch condition straight to
// i1, without the general-context widen/narrow round trip: a direct
// comparison reporter lowers to its native fcmp result, and anything else
// (a plain number, a variable load, a nested arithmetic reporter) is
// tested against zero.
func (bc *BlockCompiler) buildCondition(v hydrate.Value) llvm.Value {
	if ev, ok := v.(hydrate.ExpressionValue); ok {
		if cmp, ok := bc.comparisonValue(ev.Expr); ok {
			return cmp
		}
	}
	val := bc.buildValue(v)
	return bc.b.CreateFCmp(llvm.FloatONE, val, llvm.ConstFloat(llvm.DoubleType(), 0), "")
}

func (bc *BlockCompiler) buildSay(v hydrate.Value) {
	if s, ok := v.(hydrate.StringValue); ok {
		text := s.S + "\n"
		ptr := bc.b.CreateGlobalStringPtr(text, bc.mod.nextDataName())
		writeFn := bc.importFunc("write", []llvm.Type{llvm.Int32Type(), llvm.PointerType(llvm.Int8Type(), 0), llvm.Int64Type()}, llvm.Int64Type())
		fd := llvm.ConstInt(llvm.Int32Type(), 1, false)
		length := llvm.ConstInt(llvm.Int64Type(), uint64(len(text)), false)
		bc.b.CreateCall(writeFn, []llvm.Value{fd, ptr, length}, "")
		return
	}
	writeFloatFn := bc.importFunc("write_float", []llvm.Type{llvm.DoubleType()}, llvm.VoidType())
	bc.b.CreateCall(writeFloatFn, []llvm.Value{bc.buildValue(v)}, "")
}

// buildChain lowers the statement chain rooted at blk into bb, following
// Next links. A nil blk means the chain ran off its end: fallOffEnd
// decides whether that's a jump back to an enclosing loop/branch or a
// plain return.
func (bc *BlockCompiler) buildChain(blk *hydrate.Block, bb llvm.BasicBlock) error {
	if blk == nil {
		bc.b.SetInsertPointAtEnd(bb)
		bc.fallOffEnd()
		return nil
	}
	bc.b.SetInsertPointAtEnd(bb)

	switch op := blk.Op.(type) {
	case *hydrate.RepeatOp:
		head := bc.newBlock("repeat.head")
		body := bc.newBlock("repeat.body")
		next := bc.newBlock("repeat.next")

		counter := bc.b.CreateAlloca(llvm.Int32Type(), "repeat.n")
		n := bc.buildValue(op.Times)
		zero := llvm.ConstFloat(llvm.DoubleType(), 0)
		positive := bc.b.CreateFCmp(llvm.FloatOGT, n, zero, "")
		n = bc.b.CreateSelect(positive, n, zero, "")
		ni := bc.b.CreateFPToUI(n, llvm.Int32Type(), "")
		ni = bc.b.CreateAdd(ni, llvm.ConstInt(llvm.Int32Type(), 1, false), "")
		bc.b.CreateStore(ni, counter)
		bc.b.CreateBr(head)

		bc.b.SetInsertPointAtEnd(head)
		cur := bc.b.CreateLoad(counter, "")
		dec := bc.b.CreateSub(cur, llvm.ConstInt(llvm.Int32Type(), 1, false), "")
		bc.b.CreateStore(dec, counter)
		isZero := bc.b.CreateICmp(llvm.IntEQ, dec, llvm.ConstInt(llvm.Int32Type(), 0, false), "")
		bc.b.CreateCondBr(isZero, next, body)

		bc.ends = append(bc.ends, head)
		if err := bc.buildChain(op.Body, body); err != nil {
			return err
		}
		bc.ends = bc.ends[:len(bc.ends)-1]

		return bc.buildChain(blk.Next, next)

	case *hydrate.ForeverOp:
		bc.ends = append(bc.ends, bb)
		err := bc.buildChain(op.Body, bb)
		bc.ends = bc.ends[:len(bc.ends)-1]
		return err // blk.Next is unreachable: a forever loop never falls through.

	case *hydrate.WaitOp:
		sleepFn := bc.importFunc("sleep", []llvm.Type{llvm.Int32Type()}, llvm.VoidType())
		secs := bc.buildValue(op.Seconds)
		secsI := bc.b.CreateFPToUI(secs, llvm.Int32Type(), "")
		bc.b.CreateCall(sleepFn, []llvm.Value{secsI}, "")
		return bc.buildChain(blk.Next, bb)

	case *hydrate.IfElseOp:
		cons := bc.newBlock("if.then")
		next := bc.newBlock("if.next")
		var alt llvm.BasicBlock
		hasAlt := op.Alternative != nil
		if hasAlt {
			alt = bc.newBlock("if.else")
		}

		cond := bc.buildCondition(op.Condition)
		if hasAlt {
			bc.b.CreateCondBr(cond, cons, alt)
		} else {
			bc.b.CreateCondBr(cond, cons, next)
		}

		bc.ends = append(bc.ends, next)
		if err := bc.buildChain(op.Consequent, cons); err != nil {
			return err
		}
		if hasAlt {
			if err := bc.buildChain(op.Alternative, alt); err != nil {
				return err
			}
		}
		bc.ends = bc.ends[:len(bc.ends)-1]

		return bc.buildChain(blk.Next, next)

	case *hydrate.StopAllOp:
		detachFn := bc.importFunc("detach_scripts", nil, llvm.VoidType())
		exitFn := bc.importFunc("exit", []llvm.Type{llvm.Int32Type()}, llvm.VoidType())
		bc.b.CreateCall(detachFn, nil, "")
		bc.b.CreateCall(exitFn, []llvm.Value{llvm.ConstInt(llvm.Int32Type(), 0, false)}, "")
		bc.b.CreateUnreachable()
		return nil // blk.Next is unreachable: exit() never returns.

	case *hydrate.StopScriptOp:
		bc.b.CreateRetVoid()
		return nil // blk.Next is unreachable.

	case *hydrate.LooksSayOp:
		bc.buildSay(op.Value)
		return bc.buildChain(blk.Next, bb)

	case *hydrate.WhenFlagClickedOp:
		return bc.buildChain(blk.Next, bb)

	case *hydrate.SetVariableOp:
		v := bc.buildValue(op.Value)
		bc.c.storeScratchVar(bc.b, op.ID, v)
		return bc.buildChain(blk.Next, bb)

	case *hydrate.ChangeVariableByOp:
		cur := bc.c.loadScratchVar(bc.b, op.ID)
		delta := bc.buildValue(op.Value)
		bc.c.storeScratchVar(bc.b, op.ID, bc.b.CreateFAdd(cur, delta, ""))
		return bc.buildChain(blk.Next, bb)

	case *hydrate.ProceduresCallOp:
		fn, ok := bc.c.procedures[op.Proc]
		if !ok {
			return undefinedProcedure(op.Proc)
		}
		args := make([]llvm.Value, len(op.Args))
		for i, a := range op.Args {
			args[i] = bc.buildValue(a)
		}
		bc.b.CreateCall(fn, args, "")
		return bc.buildChain(blk.Next, bb)

	default:
		panic(fmt.Sprintf("codegen: unhandled block op %T", op))
	}
}

// Compile lowers prog's variables, procedures, and scripts into mod, and
// emits a main that spawns one thread per script and joins them all
// (spec.md §4.3, §6).
func Compile(mod *Module, prog *hydrate.Program) error {
	c := NewCompiler(mod)

	for _, v := range prog.Variables {
		c.createScratchVar(v)
	}

	// Every procedure's function symbol is registered before any body is
	// lowered, so direct and mutual recursion resolve regardless of
	// declaration order (spec.md §4.3, §9).
	procFns := make(map[string]llvm.Value, len(prog.Procedures))
	for _, proc := range prog.Procedures {
		params := make([]llvm.Type, len(proc.Arguments))
		for i := range params {
			params[i] = llvm.DoubleType()
		}
		fn := mod.DeclareFunction("proc_"+proc.ID, params, llvm.VoidType(), false)
		procFns[proc.ID] = fn
		c.procedures[proc.ID] = fn
	}

	for _, proc := range prog.Procedures {
		fn := procFns[proc.ID]
		entry := mod.DefineFunction(fn)
		bc := &BlockCompiler{c: c, mod: mod, b: mod.builder, fn: fn, args: make(map[string]llvm.Value)}
		bc.b.SetInsertPointAtEnd(entry)
		for i, name := range proc.Arguments {
			slot := bc.b.CreateAlloca(llvm.DoubleType(), name)
			bc.b.CreateStore(fn.Param(i), slot)
			bc.args[name] = slot
		}
		if err := bc.buildChain(proc.Body, entry); err != nil {
			return err
		}
	}

	scriptFns := make([]llvm.Value, len(prog.Scripts))
	for i, script := range prog.Scripts {
		fn := mod.DeclareFunction(fmt.Sprintf("script_%d", i), nil, llvm.VoidType(), false)
		entry := mod.DefineFunction(fn)
		bc := &BlockCompiler{c: c, mod: mod, b: mod.builder, fn: fn, args: make(map[string]llvm.Value)}
		if err := bc.buildChain(script, entry); err != nil {
			return err
		}
		scriptFns[i] = fn
	}

	mainFn := mod.DeclareFunction("main", nil, llvm.Int32Type(), true)
	entry := mod.DefineFunction(mainFn)
	mod.builder.SetInsertPointAtEnd(entry)

	voidPtr := llvm.PointerType(llvm.Int8Type(), 0)
	spawnFn := mod.DeclareImportedFunction("spawn_script", []llvm.Type{voidPtr}, llvm.VoidType())
	for _, fn := range scriptFns {
		addr := mod.builder.CreateBitCast(fn, voidPtr, "")
		mod.builder.CreateCall(spawnFn, []llvm.Value{addr}, "")
	}
	joinFn := mod.DeclareImportedFunction("join_scripts", nil, llvm.VoidType())
	mod.builder.CreateCall(joinFn, nil, "")
	mod.builder.CreateRet(llvm.ConstInt(llvm.Int32Type(), 0, false))

	log.Debug("module compiled", "variables", len(prog.Variables),
		"procedures", len(prog.Procedures), "scripts", len(prog.Scripts))
	return nil
}
