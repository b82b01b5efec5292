package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/arbiter/internal/adapters/driving/cli"
)

// version is set by the linker at release time.
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
