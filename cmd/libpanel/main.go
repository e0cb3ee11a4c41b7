// Package main is the libpanel command.
package main

import "github.com/mesh-intelligence/libpanel/internal/cli"

func main() {
	cli.Execute()
}
