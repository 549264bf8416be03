package main

import (
	"os"

	"github.com/inventra-labs/inventra/gateway/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
