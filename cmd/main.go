package main

import (
	"os"

	"tg-quiz-miniapp/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
