package main

import (
	"os"

	"github.com/rustyeddy/stakewatch/cmd/stakewatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
