// Command intentctl is the operator CLI for the intent-execution core:
// run a standalone host server, submit intents against it, and inspect
// worlds/proposals. main.go stays thin and delegates straight to
// cmd.Execute.
package main

import (
	"fmt"
	"os"

	"github.com/manifesto-ai/intentcore/cmd/intentctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
