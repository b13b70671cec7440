// Package main is the moviescope entry point.
package main

import (
	"fmt"
	"os"

	"github.com/handsomefox/moviescope/internal/cli"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
