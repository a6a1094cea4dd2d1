// The main package for the imagefinder executable.
package main

import (
	"github.com/JakeFAU/imagefinder/cmd"
)

func main() {
	cmd.Execute()
}
