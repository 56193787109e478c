// Package main is the single-binary entrypoint for chronik.
package main

import "github.com/unfloned/chronik/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
