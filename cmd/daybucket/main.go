package main

import (
	"os"

	"daybucket/cmd/daybucket/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
