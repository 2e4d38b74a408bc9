// Command importctl imports spreadsheets from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", exitMessage(err))
		os.Exit(1)
	}
}
