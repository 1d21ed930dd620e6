package main

import (
	"context"
	"os"

	"github.com/chrisrogers37/really-personal-finance/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
