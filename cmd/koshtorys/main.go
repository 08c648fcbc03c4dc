package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nurpe/koshtorys/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "koshtorys: %v\n", err)
		os.Exit(1)
	}
}
