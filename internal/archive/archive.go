// Package archive implements the project loader (spec.md §4.1): it opens
// the project archive, extracts the single project.json member, and
// parses it into the raw, untyped tree the hydrator walks.
//
// This stage is deliberately unambitious. The hard engineering work of
// this compiler is in package hydrate and package codegen; this package
// is commodity archive/JSON plumbing, same as spec.md §1 treats it.
package archive

import (
	"encoding/json"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/scratchc/scratchc/internal/logging"
)

const projectEntryName = "project.json"

var log = logging.New("archive")

// Load opens r as a ZIP archive of size bytes, extracts project.json, and
// parses it into a Project. r must support random access (zip requires an
// io.ReaderAt), matching spec.md's "reader is byte-seekable" contract.
func Load(r io.ReaderAt, size int64) (*Project, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, newLoadError(ErrArchive, err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == projectEntryName {
			entry = f
			break
		}
	}
	if entry == nil {
		return nil, newLoadError(ErrArchive, errMissingEntry{})
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, newLoadError(ErrIO, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, newLoadError(ErrIO, err)
	}

	var raw rawProject
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, newLoadError(ErrSchema, err)
	}

	proj := &Project{Targets: make([]Target, len(raw.Targets))}
	for i, t := range raw.Targets {
		proj.Targets[i] = Target{
			Name:      t.Name,
			IsStage:   t.IsStage,
			Variables: t.Variables,
			Blocks:    t.Blocks,
		}
		log.Debug("target loaded", "name", t.Name, "isStage", t.IsStage,
			"variables", len(t.Variables), "blocks", len(t.Blocks))
	}
	return proj, nil
}

type errMissingEntry struct{}

func (errMissingEntry) Error() string { return "project.json not found in archive" }
