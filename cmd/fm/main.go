// fm is the foreman CLI for dependency-aware agent work dispatch.
package main

import (
	"os"

	"foreman/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
