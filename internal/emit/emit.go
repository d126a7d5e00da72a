// Package emit turns a compiled codegen.Module into an object file and
// drives the system linker to produce a native executable (spec.md §4.4).
package emit

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"tinygo.org/x/go-llvm"

	"github.com/scratchc/scratchc/internal/codegen"
	"github.com/scratchc/scratchc/internal/logging"
)

var log = logging.New("emit")

// TargetOptions controls the target machine Emit builds against. An
// empty Triple targets the host the compiler itself runs on.
type TargetOptions struct {
	Triple string
}

// Emit writes mod's compiled code to objPath as a native object file.
func Emit(mod *codegen.Module, objPath string, opts TargetOptions) error {
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()
	llvm.InitializeAllTargets()

	triple := opts.Triple
	if triple == "" {
		triple = llvm.DefaultTargetTriple()
	}

	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return &EmitError{Err: err}
	}

	tm := target.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelDefault, llvm.RelocDefault, llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	llmod := mod.LLVMModule()
	llmod.SetDataLayout(td.String())
	llmod.SetTarget(tm.Triple())

	buf, err := tm.EmitToMemoryBuffer(llmod, llvm.ObjectFile)
	if err != nil {
		return &EmitError{Err: err}
	}
	if buf.IsNil() {
		return &EmitError{Err: errors.New("target machine produced no object code")}
	}

	if err := os.WriteFile(objPath, buf.Bytes(), 0o644); err != nil {
		return &EmitError{Err: err}
	}
	log.Debug("object emitted", "path", objPath, "triple", triple)
	return nil
}

// NewScratchDir creates a fresh, uuid-named directory under base to hold
// the intermediate object file for one compilation, so concurrent
// compiler invocations sharing the same base directory never collide.
func NewScratchDir(base string) (string, error) {
	dir := filepath.Join(base, "scratchc-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
