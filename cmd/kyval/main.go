package main

import (
	"os"

	"github.com/dokzlo13/kyval/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
