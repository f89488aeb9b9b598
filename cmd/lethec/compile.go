package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/lethe-lang/lethe/pkg/compiler"
	"github.com/lethe-lang/lethe/pkg/driver"
)

func newCompileCommand() cli.Command {
	return cli.Command{
		Name:      "compile",
		Usage:     "Compile Lethe sources into a bytecode image",
		UsageText: "lethec compile [--config file.yml] [--out image.lbc] file.lethe...",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "config, c", Usage: "YAML compiler configuration"},
			cli.StringFlag{Name: "out, o", Usage: "output image path", Value: "out.lbc"},
			cli.BoolFlag{Name: "verbose, v", Usage: "log compiler passes"},
		},
		Action: compileAction,
	}
}

func compileAction(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return cli.NewExitError("compile: no input files", 1)
	}
	if driver.Parser == nil {
		return cli.NewExitError("compile: this build has no front-end grammar linked; use dump/explore on precompiled images", 1)
	}

	cfg := driver.Config{}
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = driver.Load(path); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}

	sources := make(map[string][]byte, ctx.NArg())
	for _, path := range ctx.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("compile: %v", err), 1)
		}
		var perr error
		if cfg, perr = driver.ApplyPragmas(cfg, data); perr != nil {
			return cli.NewExitError(perr.Error(), 1)
		}
		sources[path] = data
	}

	if err := compiler.Init(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer compiler.Done()

	var log *zap.Logger
	if ctx.Bool("verbose") {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}

	eng, err := compiler.New(cfg.Options(), log)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	eng.SetParser(driver.Parser)
	eng.SetDiagnosticCallback(printDiagnostic)

	for _, path := range ctx.Args() {
		if err := eng.CompileBuffer(sources[path], filepath.Base(path)); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
	}
	prog, err := eng.Link()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	data, err := prog.Marshal()
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	out := ctx.String("out")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	fmt.Fprintf(ctx.App.Writer, "wrote %s (%d bytes code, %d bytes pool, %d functions)\n",
		out, len(prog.Code), len(prog.ConstPool), len(prog.Symbols))
	return nil
}
