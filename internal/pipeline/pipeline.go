// Package pipeline wires the loader, hydrator, code generator, and
// emitter into the single end-to-end compile operation the CLI drives.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/scratchc/scratchc/internal/archive"
	"github.com/scratchc/scratchc/internal/codegen"
	"github.com/scratchc/scratchc/internal/config"
	"github.com/scratchc/scratchc/internal/emit"
	"github.com/scratchc/scratchc/internal/hydrate"
	"github.com/scratchc/scratchc/internal/logging"
)

var log = logging.New("pipeline")

// Options configures one Compile invocation.
type Options struct {
	// Input is the path to the project archive to compile.
	Input string
	// Output is the path the final native executable is written to.
	Output string
	// EmitObject, if set, copies the intermediate object file next to
	// Output with a ".o" suffix instead of discarding it.
	EmitObject bool
	// ScratchDirBase is the parent directory new per-compile scratch
	// directories are created under (spec.md §4.4). Defaults to os.TempDir().
	ScratchDirBase string

	Config config.Config
}

// Compile runs the full project -> executable pipeline described by
// spec.md §4: load the archive, hydrate every target, lower each to
// native code in a shared module, emit an object file, and link it into
// opts.Output.
func Compile(opts Options) error {
	f, err := os.Open(opts.Input)
	if err != nil {
		return fmt.Errorf("pipeline: opening input: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("pipeline: statting input: %w", err)
	}

	proj, err := archive.Load(f, info.Size())
	if err != nil {
		return err
	}

	mod := codegen.NewModule("scratchc_out")
	defer mod.Dispose()

	var allVars []string
	var allProcs []*hydrate.Procedure
	var allScripts []*hydrate.Block

	for _, target := range proj.Targets {
		prog, err := hydrate.Hydrate(target)
		if err != nil {
			return err
		}
		allVars = append(allVars, prog.Variables...)
		allProcs = append(allProcs, prog.Procedures...)
		allScripts = append(allScripts, prog.Scripts...)
	}

	program := &hydrate.Program{Variables: allVars, Procedures: allProcs, Scripts: allScripts}
	if err := codegen.Compile(mod, program); err != nil {
		return err
	}

	scratchBase := opts.ScratchDirBase
	if scratchBase == "" {
		scratchBase = os.TempDir()
	}
	scratchDir, err := emit.NewScratchDir(scratchBase)
	if err != nil {
		return fmt.Errorf("pipeline: creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	objPath := filepath.Join(scratchDir, "out.o")
	if err := emit.Emit(mod, objPath, emit.TargetOptions{Triple: opts.Config.Target}); err != nil {
		return err
	}

	if opts.EmitObject {
		if err := copyFile(objPath, opts.Output+".o"); err != nil {
			log.Warn("could not copy intermediate object file", "err", err)
		}
	}

	return emit.Link(objPath, opts.Output, emit.LinkOptions{
		Compiler:       opts.Config.Compiler,
		SupportLibPath: opts.Config.SupportLib,
		ManifestPath:   opts.Config.Manifest,
		ExtraFlags:     opts.Config.LinkerFlags,
	})
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
