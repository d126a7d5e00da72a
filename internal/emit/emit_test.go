package emit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scratchc/scratchc/internal/codegen"
	"github.com/scratchc/scratchc/internal/hydrate"
)

func TestEmitWritesObjectFile(t *testing.T) {
	prog := &hydrate.Program{
		Scripts: []*hydrate.Block{
			{
				Op: &hydrate.WhenFlagClickedOp{},
				Next: &hydrate.Block{
					Op: &hydrate.StopAllOp{},
				},
			},
		},
	}

	mod := codegen.NewModule("emit_test")
	defer mod.Dispose()
	require.NoError(t, codegen.Compile(mod, prog))

	dir := t.TempDir()
	objPath := filepath.Join(dir, "out.o")
	require.NoError(t, Emit(mod, objPath, TargetOptions{}))

	data, err := os.ReadFile(objPath)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// An ELF or Mach-O object begins with one of a small set of magic
	// byte sequences; either is acceptable since the host running the
	// test may be either platform.
	isELF := len(data) >= 4 && string(data[:4]) == "\x7fELF"
	isMachO := len(data) >= 4 && (data[0] == 0xcf || data[0] == 0xce || data[0] == 0xca || data[0] == 0xfe)
	require.True(t, isELF || isMachO, "object file did not start with a recognizable magic number")
}

func TestNewScratchDirIsUnique(t *testing.T) {
	base := t.TempDir()

	a, err := NewScratchDir(base)
	require.NoError(t, err)
	b, err := NewScratchDir(base)
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	for _, dir := range []string{a, b} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}
