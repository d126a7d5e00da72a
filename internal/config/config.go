// Package config loads the compiler's TOML configuration file: target
// machine overrides, the runtime-support library location, and extra
// linker flags (spec.md §4.4's expanded scope).
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

// tomlSettings mirrors the host project's own TOML configuration: field
// names are taken verbatim, and an unrecognized key is a hard error
// rather than silently ignored, so a typo in a config file is caught
// instead of quietly doing nothing.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Config is the compiler's TOML configuration file schema.
type Config struct {
	// Target is the LLVM target triple to compile for. Empty means the
	// host the compiler itself runs on.
	Target string `toml:",omitempty"`
	// SupportLib is the path to the precompiled runtime-support static
	// library (libscratchsupport.a).
	SupportLib string
	// Manifest is the path to the linker-flags manifest accompanying
	// SupportLib.
	Manifest string `toml:",omitempty"`
	// LinkerFlags are appended to every link invocation after the
	// manifest's flags.
	LinkerFlags []string `toml:",omitempty"`
	// Compiler overrides the C++ compiler driver used to link (default
	// "c++").
	Compiler string `toml:",omitempty"`
}

// Default returns the configuration used when no config file is given:
// the support library and its manifest are named by bare file names,
// which resolve against the current working directory.
func Default() Config {
	return Config{
		SupportLib: "libscratchsupport.a",
		Manifest:   "libscratchsupport.manifest",
	}
}

// Load reads and parses the TOML configuration file at path on top of
// Default.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		var lineErr *toml.LineError
		if errors.As(err, &lineErr) {
			return cfg, fmt.Errorf("%s, %w", path, err)
		}
		return cfg, err
	}
	return cfg, nil
}
