// Command biorag is the entry point for the space bioscience research
// assistant. It provides a CLI interface (via Cobra) and an optional HTTP
// server exposing the retrieval engine as a REST API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spacebio/biorag/cmd/biorag/commands"
)

func main() {
	// .env is optional — absence is not an error.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
