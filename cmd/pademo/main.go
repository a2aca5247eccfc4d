// Package main provides the pademo CLI.
//
// Usage:
//
//	pademo [flags] <command> [flags]
//
// Commands:
//
//	devices      - List audio devices with channel limits and default rate
//	capture      - Capture input and report peak/RMS per buffer
//	capture-auto - Capture mono input with device-chosen parameters
//	duplex       - Play the phase-inverted input back through the output
//	config       - Print the effective configuration as YAML
//
// Capture and duplex run for --duration (default 10s) or until Ctrl-C.
package main

import (
	"os"

	"github.com/drgolem/go-portaudio-demos/cmd/pademo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
