package main

import (
	"errors"
	"os"

	"github.com/daydemir/toil/internal/cli"
	"github.com/daydemir/toil/internal/engine"
)

func main() {
	if err := cli.Execute(); err != nil {
		if errors.Is(err, engine.ErrInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
