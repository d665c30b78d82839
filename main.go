package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and maps the outcome to a process exit code. A verify
// mismatch exits 1 without an error line; its report is the output.
func run(args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)

	err := cmd.Execute()

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errVerifyMismatch):
		return 1
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
}
