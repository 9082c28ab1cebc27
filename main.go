// The main package for the fetcher executable.
package main

import (
	"github.com/JakeFAU/fetcher/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
