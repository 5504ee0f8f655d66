// Command cdpflow is a command line client for the Chrome DevTools Protocol.
package main

import (
	"fmt"
	"os"

	"github.com/drblury/cdpflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cdpflow:", err)
		os.Exit(1)
	}
}
