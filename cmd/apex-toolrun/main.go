// Package main provides the apex-toolrun CLI entry point.
//
// apex-toolrun runs external development tools (compiler, documentation
// generator, application and applet launchers, and user-defined catalog
// tools) on a source file and streams their output to a console.
package main

import (
	"context"
	"os"

	"github.com/MuteSoft/apextext-sub002/internal/cli"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/apex-toolrun
var version = "dev"

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], cli.DefaultStreams(), version))
}
