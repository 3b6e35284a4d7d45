package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"xcm-transfer/cmd"
)

func main() {
	// A .env file is optional; the environment may already be populated
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
