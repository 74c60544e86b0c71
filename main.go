package main

import (
	"os"

	"github.com/poutila/doxstrux/cmd"
	"github.com/poutila/doxstrux/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.ExitCode(err))
	}
}
