package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"dream60/internal/cli"
)

func main() {
	// .env is optional; real environment variables still win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cli.Execute()
}
