package main

import (
	"os"

	"github.com/boykhocnhe/microfourthirds/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
