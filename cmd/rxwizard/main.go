// Command rxwizard runs the guided content wizard and the reference compliance checks.
package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/rxwizard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
