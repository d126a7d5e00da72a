package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratchc.toml")
	contents := `
Target = "x86_64-pc-linux-gnu"
SupportLib = "/opt/scratchc/libscratchsupport.a"
LinkerFlags = ["-lm"]
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Target != "x86_64-pc-linux-gnu" {
		t.Errorf("Target = %q", cfg.Target)
	}
	if cfg.SupportLib != "/opt/scratchc/libscratchsupport.a" {
		t.Errorf("SupportLib = %q", cfg.SupportLib)
	}
	if len(cfg.LinkerFlags) != 1 || cfg.LinkerFlags[0] != "-lm" {
		t.Errorf("LinkerFlags = %v", cfg.LinkerFlags)
	}
	if cfg.Manifest != "libscratchsupport.manifest" {
		t.Errorf("expected default manifest to survive unset, got %q", cfg.Manifest)
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scratchc.toml")
	if err := os.WriteFile(path, []byte("Bogus = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unrecognized config key")
	}
}
