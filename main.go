package main

import (
	"os"

	"github.com/mdfranz/saruca/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
