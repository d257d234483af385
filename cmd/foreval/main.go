package main

import (
	"os"

	"github.com/wonny/foreval/cmd/foreval/commands"
)

// main is the entry point for the forecast evaluator CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/foreval [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
