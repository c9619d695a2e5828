package main

import "github.com/ryanmoran/dockhand/internal/cli"

func main() {
	cli.Execute()
}
