package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/AI2HU/brandlens/internal/cli"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
