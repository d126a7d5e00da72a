package emit

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
)

// LinkOptions configures the system linker driver invocation.
type LinkOptions struct {
	// Compiler is the C++ compiler driver to invoke. Defaults to "c++".
	Compiler string
	// SupportLibPath is the precompiled runtime-support static library
	// (spec.md §4.4, §6) implementing spawn_script/join_scripts/
	// detach_scripts/write_float; sleep/write/exit come from libc.
	SupportLibPath string
	// ManifestPath, if set, names a file listing one extra linker flag
	// per line — the Go equivalent of capturing `rustc --print
	// native-static-libs` for the platform libraries the support library
	// itself depends on (pthread, libc, ...).
	ManifestPath string
	// ExtraFlags are appended after the manifest's flags, e.g. a
	// target-specific -target or -L override.
	ExtraFlags []string
}

// Link invokes the system C++ compiler driver to link objPath and the
// runtime-support library into the native executable at outPath.
func Link(objPath, outPath string, opts LinkOptions) error {
	compiler := opts.Compiler
	if compiler == "" {
		compiler = "c++"
	}

	args := []string{"-O3", objPath, opts.SupportLibPath, "-pthread", "-o", outPath}

	if opts.ManifestPath != "" {
		flags, err := readManifest(opts.ManifestPath)
		if err != nil {
			return &LinkError{Err: err}
		}
		args = append(args, flags...)
	}
	args = append(args, opts.ExtraFlags...)

	cmd := exec.Command(compiler, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &LinkError{Err: err, Stderr: stderr.String()}
	}
	log.Debug("linked", "compiler", compiler, "out", outPath)
	return nil
}

func readManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var flags []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		flags = append(flags, line)
	}
	return flags, nil
}
