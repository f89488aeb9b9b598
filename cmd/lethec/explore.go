package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/urfave/cli"

	"github.com/lethe-lang/lethe/internal/emit"
	"github.com/lethe-lang/lethe/pkg/compiler"
)

func newExploreCommand() cli.Command {
	return cli.Command{
		Name:      "explore",
		Usage:     "Interactively browse a compiled bytecode image",
		UsageText: "lethec explore image.lbc",
		Action:    exploreAction,
	}
}

var exploreCompleter = readline.NewPrefixCompleter(
	readline.PcItem("funcs"),
	readline.PcItem("classes"),
	readline.PcItem("natives"),
	readline.PcItem("dis"),
	readline.PcItem("help"),
	readline.PcItem("exit"),
)

func exploreAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.NewExitError("explore: exactly one image path required", 1)
	}
	prog, err := loadProgram(ctx.Args().First())
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       "lethe> ",
		AutoComplete: exploreCompleter,
	})
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		args, err := shellquote.Split(strings.TrimSpace(line))
		if err != nil || len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return nil
		}
		if err := handleExplore(rl.Stdout(), prog, args); err != nil {
			fmt.Fprintln(rl.Stderr(), err)
		}
	}
}

func handleExplore(w io.Writer, prog *compiler.Program, args []string) error {
	switch args[0] {
	case "help":
		fmt.Fprintln(w, "funcs | classes | natives | dis <func> | exit")

	case "funcs":
		names := make([]string, 0, len(prog.Symbols))
		for n := range prog.Symbols {
			names = append(names, n)
		}
		sort.Strings(names)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, n := range names {
			fmt.Fprintf(tw, "%s\t%d\n", n, prog.Symbols[n])
		}
		return tw.Flush()

	case "classes":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, c := range prog.Classes {
			fmt.Fprintf(tw, "%s\tvtbl@%d\t%d slots\n", c.Name, c.VtblOffset, c.VtblSize)
		}
		return tw.Flush()

	case "natives":
		for i, n := range prog.NativeFuncs {
			fmt.Fprintf(w, "[%d] %s\n", i, n)
		}

	case "dis":
		if len(args) != 2 {
			return fmt.Errorf("usage: dis <func>")
		}
		start, err := prog.EntryPC(args[1])
		if err != nil {
			return err
		}
		// A function's extent is the next symbol's entry (or end of code).
		end := len(prog.Code) / 4
		for _, pc := range prog.Symbols {
			if pc > start && pc < end {
				end = pc
			}
		}
		lines := emit.Disasm(prog.Code)
		for pc := start; pc < end && pc < len(lines); pc++ {
			fmt.Fprintln(w, lines[pc])
		}

	default:
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
	return nil
}
