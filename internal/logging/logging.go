// Package logging configures the structured logger shared by every stage
// of the compiler pipeline. It mirrors the host project's own log setup:
// a color terminal handler when stdout is a TTY, a plain handler otherwise.
package logging

import (
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	log "github.com/inconshreveable/log15"
)

// Root is the logger every package in this module logs through.
var Root = log.New()

// Init installs a terminal or plain handler on Root depending on whether
// stdout is attached to a terminal, and on the requested verbosity.
func Init(verbose bool) {
	lvl := log.LvlInfo
	if verbose {
		lvl = log.LvlDebug
	}

	var handler log.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = log.StreamHandler(colorable.NewColorableStdout(), log.TerminalFormat())
	} else {
		handler = log.StreamHandler(os.Stdout, log.LogfmtFormat())
	}

	Root.SetHandler(log.LvlFilterHandler(lvl, handler))
}

// New returns a child logger tagged with the given component name, the
// convention every pipeline stage uses to identify its log lines.
func New(component string) log.Logger {
	return Root.New("component", component)
}
