package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/lethe-lang/lethe/internal/diag"
	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/pkg/compiler"
)

func newDumpCommand() cli.Command {
	return cli.Command{
		Name:      "dump",
		Usage:     "Disassemble a compiled bytecode image",
		UsageText: "lethec dump image.lbc",
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "symbols, s", Usage: "only print the symbol table"},
		},
		Action: dumpAction,
	}
}

func dumpAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("dump: exactly one image path required", 1)
	}
	prog, err := loadProgram(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	w := ctx.App.Writer
	names := make([]string, 0, len(prog.Symbols))
	for n := range prog.Symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "functions (%d):\n", len(names))
	for _, n := range names {
		fmt.Fprintf(w, "  %05d  %s\n", prog.Symbols[n], n)
	}
	if ctx.Bool("symbols") {
		return nil
	}

	fmt.Fprintf(w, "classes (%d):\n", len(prog.Classes))
	for _, c := range prog.Classes {
		fmt.Fprintf(w, "  %-24s vtbl@%d (%d slots)\n", c.Name, c.VtblOffset, c.VtblSize)
	}
	fmt.Fprintf(w, "natives (%d):\n", len(prog.NativeFuncs))
	for i, n := range prog.NativeFuncs {
		fmt.Fprintf(w, "  [%d] %s\n", i, n)
	}
	fmt.Fprintf(w, "code (%d words):\n", len(prog.Code)/4)
	for _, line := range emit.Disasm(prog.Code) {
		fmt.Fprintf(w, "  %s\n", line)
	}
	fmt.Fprintf(w, "const pool: %d bytes\n", len(prog.ConstPool))
	return nil
}

func loadProgram(path string) (*compiler.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	return compiler.UnmarshalProgram(data)
}

// printDiagnostic renders one compiler diagnostic, wrapped to the
// terminal width when stderr is a terminal.
func printDiagnostic(d diag.Diagnostic) {
	sev := "error"
	if d.Severity == diag.SeverityWarning {
		sev = "warning"
	}
	msg := fmt.Sprintf("%s: %s: %s", d.Loc, sev, d.Message)
	width := 0
	if term.IsTerminal(int(os.Stderr.Fd())) {
		width, _, _ = term.GetSize(int(os.Stderr.Fd()))
	}
	fmt.Fprintln(os.Stderr, wrap(msg, width))
}

// wrap breaks s at spaces so no line exceeds width; width <= 0 leaves s
// unchanged.
func wrap(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	words := strings.Fields(s)
	var b strings.Builder
	line := 0
	for i, w := range words {
		if i > 0 {
			if line+1+len(w) > width {
				b.WriteByte('\n')
				line = 0
			} else {
				b.WriteByte(' ')
				line++
			}
		}
		b.WriteString(w)
		line += len(w)
	}
	return b.String()
}
