// Command lethec is the Lethe compiler driver: it compiles source into a
// bytecode image, dumps a compiled image, and opens an interactive
// explorer over one.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

const version = "0.9.0"

func main() {
	ctl := cli.NewApp()
	ctl.Name = "lethec"
	ctl.Version = version
	ctl.Usage = "Lethe script compiler"
	ctl.ErrWriter = os.Stdout
	ctl.Commands = []cli.Command{
		newCompileCommand(),
		newDumpCommand(),
		newExploreCommand(),
	}
	if err := ctl.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
