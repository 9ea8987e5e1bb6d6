// The main package for the ragline executable.
package main

import (
	"github.com/praxis-search/ragline/cmd"
)

func main() {
	cmd.Execute()
}
