package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/knpwrs/dc-download/cmd"
)

const version = "1.0.0"

// main is the entry point for the dc-download CLI application.
//
// It downloads the images of a NYPL Digital Collections item, one capture
// at a time, into a local directory.
func main() {
	root := cmd.NewRootCmd(version)

	// fang adds --version, completions and a signal-cancelled context
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
