package main

import (
	"os"

	"github.com/emalign/emsolve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
