// Command scratchc ahead-of-time compiles a project archive into a
// native executable (spec.md §1).
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"gopkg.in/urfave/cli.v1"

	"github.com/scratchc/scratchc/internal/archive"
	"github.com/scratchc/scratchc/internal/codegen"
	"github.com/scratchc/scratchc/internal/config"
	"github.com/scratchc/scratchc/internal/emit"
	"github.com/scratchc/scratchc/internal/hydrate"
	"github.com/scratchc/scratchc/internal/logging"
	"github.com/scratchc/scratchc/internal/pipeline"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	outputFlag = cli.StringFlag{
		Name:  "o",
		Usage: "output executable path",
		Value: "a.out",
	}
	emitObjectFlag = cli.BoolFlag{
		Name:  "emit-object",
		Usage: "keep the intermediate object file next to the output, as <output>.o",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "v",
		Usage: "enable debug logging",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "scratchc"
	app.Usage = "compile a project archive to a native executable"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{configFlag, verboseFlag}
	app.Commands = []cli.Command{
		compileCommand,
	}

	if err := app.Run(os.Args); err != nil {
		// HandleExitCoder prints and exits for any cli.ExitCoder, which is
		// every error runCompile returns; the fallback below only fires for
		// an error cli itself produced (e.g. unknown flag) before reaching
		// runCompile.
		cli.HandleExitCoder(err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var compileCommand = cli.Command{
	Name:      "compile",
	Usage:     "compile <input.archive> [<output-path>]",
	ArgsUsage: "<input.archive> [<output-path>]",
	Flags:     []cli.Flag{outputFlag, emitObjectFlag},
	Action:    runCompile,
}

func runCompile(ctx *cli.Context) error {
	logging.Init(ctx.GlobalBool(verboseFlag.Name))

	if ctx.NArg() < 1 || ctx.NArg() > 2 {
		return cli.NewExitError("compile: expected <input.archive> [<output-path>]", 2)
	}
	output := ctx.String(outputFlag.Name)
	if ctx.NArg() == 2 {
		output = ctx.Args().Get(1)
	}

	cfg := config.Default()
	if file := ctx.GlobalString(configFlag.Name); file != "" {
		loaded, err := config.Load(file)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("compile: %v", err), 2)
		}
		cfg = loaded
	}

	opts := pipeline.Options{
		Input:      ctx.Args().Get(0),
		Output:     output,
		EmitObject: ctx.Bool(emitObjectFlag.Name),
		Config:     cfg,
	}

	if err := pipeline.Compile(opts); err != nil {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "FAIL")
		return cli.NewExitError(err.Error(), exitCode(err))
	}
	color.New(color.FgGreen, color.Bold).Fprintf(os.Stdout, "PASS")
	fmt.Fprintf(os.Stdout, ": wrote %s\n", opts.Output)
	return nil
}

// exitCode maps a pipeline-stage error to the process exit status
// spec.md §7 assigns to each stage: loader errors are a user-input
// problem (2), hydrate/codegen errors point at a malformed or
// unsupported project (3), and emit/link errors are environment/toolchain
// problems (4).
func exitCode(err error) int {
	switch err.(type) {
	case *archive.LoadError:
		return 2
	case *hydrate.HydrateError, *codegen.CodeGenError:
		return 3
	case *emit.EmitError, *emit.LinkError:
		return 4
	default:
		return 1
	}
}
