// The main package for the guidance executable.
package main

import (
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
