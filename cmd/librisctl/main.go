// Package main provides librisctl, the Libris admin command line.
package main

import "github.com/librisapp/libris-server/internal/cli"

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
