// Command chemvis is the command line client for a chemvis server.
package main

import (
	"os"

	"chemvis/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
