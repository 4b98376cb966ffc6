// Command conductor is the terminal client: one-shot questions, an
// interactive REPL, guided configuration, and index maintenance.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}
