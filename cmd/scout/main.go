package main

import (
	"os"

	"github.com/mvargas/tender-scout/cmd/scout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
