package main

import "github.com/calepin/calepin/internal/cli"

// Overridden at release time via -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
