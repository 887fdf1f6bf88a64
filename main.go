package main

import (
	"os"

	"github.com/breaking-byts/lifeos/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
